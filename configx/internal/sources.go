// Package internal provides internal implementation details for configx.
//
// Overview:
//   - Responsibility: Configuration sources (env, dotenv, YAML, static map) and their merge
//   - Key Types: EnvSource, DotenvSource, YAMLSource, MapSource
//   - Concurrency Model: All sources are safe for concurrent use
//   - Error Semantics: Missing files load as empty snapshots; parse failures are errors
//   - Performance Notes: File watching polls modification time
package internal

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.eggybyte.com/orchid/core/log"
)

// EnvOptions configures environment variable source behavior.
type EnvOptions struct {
	Prefix string // Only keys with this prefix are read; the prefix is stripped
}

// EnvSource loads configuration from environment variables.
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new environment variable source.
func NewEnvSource(opts EnvOptions) Source {
	return &EnvSource{prefix: opts.Prefix}
}

// Load reads configuration from environment variables.
func (s *EnvSource) Load(ctx context.Context) (map[string]string, error) {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if s.prefix != "" {
			if !strings.HasPrefix(key, s.prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.prefix)
		}
		config[key] = value
	}

	return config, nil
}

// Watch never publishes: the environment is fixed for the process lifetime.
func (s *EnvSource) Watch(ctx context.Context) (<-chan map[string]string, error) {
	return idleWatch(ctx), nil
}

// MapSource serves a fixed snapshot.
type MapSource struct {
	values map[string]string
}

// NewMapSource copies values into a static source.
func NewMapSource(values map[string]string) Source {
	return &MapSource{values: maps.Clone(values)}
}

func (s *MapSource) Load(context.Context) (map[string]string, error) {
	return maps.Clone(s.values), nil
}

func (s *MapSource) Watch(ctx context.Context) (<-chan map[string]string, error) {
	return idleWatch(ctx), nil
}

// FileOptions configures file source behavior.
type FileOptions struct {
	Watch    bool          // Poll the file for changes
	Interval time.Duration // Polling interval (default: 1s)
	Logger   log.Logger
}

type fileParser func(data []byte) (map[string]string, error)

// FileSource loads a snapshot from a file and optionally polls it for changes.
type FileSource struct {
	path     string
	parse    fileParser
	watch    bool
	interval time.Duration
	logger   log.Logger
}

// NewDotenvSource reads KEY=VALUE files in godotenv syntax.
func NewDotenvSource(path string, opts FileOptions) Source {
	return newFileSource(path, parseDotenv, opts)
}

// NewYAMLSource reads a YAML document. Nested mappings are flattened into
// UPPER_SNAKE keys joined with "_", so redis.key_prefix becomes REDIS_KEY_PREFIX.
// Sequences of scalars become comma-separated values.
func NewYAMLSource(path string, opts FileOptions) Source {
	return newFileSource(path, parseYAML, opts)
}

func newFileSource(path string, parse fileParser, opts FileOptions) *FileSource {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &FileSource{
		path:     path,
		parse:    parse,
		watch:    opts.Watch,
		interval: interval,
		logger:   logger,
	}
}

// Load reads configuration from the file. A missing file is an empty snapshot.
func (s *FileSource) Load(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read file %s: %w", s.path, err)
	}

	snapshot, err := s.parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", s.path, err)
	}
	return snapshot, nil
}

// Watch polls the file and publishes a snapshot whenever its modification time advances.
func (s *FileSource) Watch(ctx context.Context) (<-chan map[string]string, error) {
	if !s.watch {
		return idleWatch(ctx), nil
	}

	var lastModTime time.Time
	if info, err := os.Stat(s.path); err == nil {
		lastModTime = info.ModTime()
	}

	ch := make(chan map[string]string)
	go func() {
		defer close(ch)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(s.path)
				if err != nil {
					if !os.IsNotExist(err) {
						s.logger.Error(err, "failed to stat config file", log.Str("path", s.path))
					}
					continue
				}
				if !info.ModTime().After(lastModTime) {
					continue
				}
				lastModTime = info.ModTime()

				config, err := s.Load(ctx)
				if err != nil {
					s.logger.Error(err, "failed to reload config file", log.Str("path", s.path))
					continue
				}

				select {
				case ch <- config:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func parseDotenv(data []byte) (map[string]string, error) {
	return godotenv.UnmarshalBytes(data)
}

func parseYAML(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(joinKey(prefix, k), child, out)
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, scalar(item))
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = scalar(v)
	}
}

func joinKey(prefix, key string) string {
	key = strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// Merge overlays snapshots in order; later snapshots win. Empty values never
// override a value set by an earlier source.
func Merge(snapshots ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, snapshot := range snapshots {
		for k, v := range snapshot {
			if v != "" {
				merged[k] = v
			}
		}
	}
	return merged
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
