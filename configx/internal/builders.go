package internal

import (
	"path/filepath"
	"strings"
)

// BuildSources returns the environment as the baseline source followed by one
// source per file, in order, so later files override earlier ones and every
// file overrides the environment. Files are picked by extension: .yaml/.yml
// are YAML, anything else is read as a dotenv file.
func BuildSources(envPrefix string, files []string, opts FileOptions) []Source {
	sources := []Source{NewEnvSource(EnvOptions{Prefix: envPrefix})}
	for _, path := range files {
		if path == "" {
			continue
		}
		sources = append(sources, NewFileSource(path, opts))
	}
	return sources
}

// NewFileSource picks the parser for path from its extension.
func NewFileSource(path string, opts FileOptions) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLSource(path, opts)
	default:
		return NewDotenvSource(path, opts)
	}
}
