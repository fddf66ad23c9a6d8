package configx

import (
	"context"
	"fmt"
	"time"

	"go.eggybyte.com/orchid/configx/internal"
	"go.eggybyte.com/orchid/core/log"
)

// Source describes a configuration source that can load and watch for updates.
// Implementations must be thread-safe and honor context cancellation.
type Source interface {
	// Load reads the current configuration snapshot.
	Load(ctx context.Context) (map[string]string, error)

	// Watch publishes fresh snapshots on the returned channel, which is closed
	// when ctx is cancelled.
	Watch(ctx context.Context) (<-chan map[string]string, error)
}

// Manager merges several sources, later sources taking precedence.
type Manager interface {
	// Snapshot returns a copy of the current merged configuration.
	Snapshot() map[string]string

	// Value returns the value for a key and whether it exists.
	Value(key string) (string, bool)

	// Bind decodes the configuration into a struct with env tags and default values.
	Bind(target any, opts ...BindOption) error

	// OnUpdate subscribes to configuration update events.
	// Returns an unsubscribe function.
	OnUpdate(fn func(snapshot map[string]string)) (unsubscribe func())
}

// Options holds configuration for the manager.
type Options struct {
	Logger   log.Logger    // Logger for configuration operations
	Sources  []Source      // Configuration sources (later sources override earlier ones)
	Debounce time.Duration // Debounce duration for updates (default: 200ms)
}

// BindOption configures binding behavior.
type BindOption interface {
	apply(*bindConfig)
}

type bindConfig struct {
	onUpdate func()
}

type bindOptionFunc func(*bindConfig)

func (f bindOptionFunc) apply(cfg *bindConfig) {
	f(cfg)
}

// WithUpdateCallback rebinds the target on every configuration change and
// calls fn afterwards.
func WithUpdateCallback(fn func()) BindOption {
	return bindOptionFunc(func(cfg *bindConfig) {
		cfg.onUpdate = fn
	})
}

type manager struct {
	impl *internal.ManagerImpl
}

// NewManager loads every source and starts watching them until ctx is cancelled.
func NewManager(ctx context.Context, opts Options) (Manager, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	sources := make([]internal.Source, len(opts.Sources))
	for i, src := range opts.Sources {
		sources[i] = src
	}

	impl, err := internal.NewManager(opts.Logger, sources, opts.Debounce)
	if err != nil {
		return nil, err
	}
	if err := impl.Initialize(ctx); err != nil {
		return nil, err
	}

	return &manager{impl: impl}, nil
}

func (m *manager) Snapshot() map[string]string {
	return m.impl.Snapshot()
}

func (m *manager) Value(key string) (string, bool) {
	return m.impl.Value(key)
}

func (m *manager) Bind(target any, opts ...BindOption) error {
	var cfg bindConfig
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return m.impl.Bind(target, cfg.onUpdate)
}

func (m *manager) OnUpdate(fn func(snapshot map[string]string)) func() {
	return m.impl.OnUpdate(fn)
}

// EnvOptions configures environment variable source behavior.
type EnvOptions struct {
	Prefix string // Only keys with this prefix are read; the prefix is stripped
}

// FileOptions configures file source behavior.
type FileOptions struct {
	Watch    bool          // Poll the file for changes
	Interval time.Duration // Polling interval (default: 1s)
	Logger   log.Logger
}

func (o FileOptions) internal() internal.FileOptions {
	return internal.FileOptions{Watch: o.Watch, Interval: o.Interval, Logger: o.Logger}
}

// NewSources returns the environment source followed by one source per file,
// the same layering Load uses. Files ending in .yaml or .yml are YAML, any
// other file is dotenv.
func NewSources(envPrefix string, files []string, opts FileOptions) []Source {
	var sources []Source
	for _, s := range internal.BuildSources(envPrefix, files, opts.internal()) {
		sources = append(sources, s)
	}
	return sources
}

// NewEnvSource creates an environment variable configuration source.
func NewEnvSource(opts EnvOptions) Source {
	return internal.NewEnvSource(internal.EnvOptions{Prefix: opts.Prefix})
}

// NewDotenvSource reads a KEY=VALUE file. A missing file loads as empty.
func NewDotenvSource(path string, opts FileOptions) Source {
	return internal.NewDotenvSource(path, opts.internal())
}

// NewYAMLSource reads a YAML file, flattening nested keys into UPPER_SNAKE
// (redis: {url: ...} becomes REDIS_URL). A missing file loads as empty.
func NewYAMLSource(path string, opts FileOptions) Source {
	return internal.NewYAMLSource(path, opts.internal())
}

// NewMapSource serves a fixed snapshot. Mostly useful in tests.
func NewMapSource(values map[string]string) Source {
	return internal.NewMapSource(values)
}

// Keys lists every configuration key target reads, including section keys
// under their envPrefix.
func Keys(target any) []string {
	return internal.Keys(target)
}

// ParseDuration accepts Go duration strings and bare numbers of seconds.
func ParseDuration(value string) (time.Duration, error) {
	return internal.ParseDuration(value)
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger    log.Logger
	sources   []Source
	envPrefix string
	files     []string
	validate  bool
}

// WithLogger sets the logger used while loading.
func WithLogger(logger log.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// WithSources replaces the default sources (env plus files) entirely.
func WithSources(sources ...Source) LoadOption {
	return func(o *loadOptions) {
		o.sources = sources
	}
}

// WithEnvPrefix reads only environment keys with prefix, stripping it.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithFiles layers dotenv or YAML files over the environment, in order.
func WithFiles(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.files = append(o.files, paths...)
	}
}

// WithoutValidation skips validator tags after binding.
func WithoutValidation() LoadOption {
	return func(o *loadOptions) {
		o.validate = false
	}
}

// Load binds target once from the configured sources and validates it.
// It does not watch for changes; use NewManager for that.
func Load(ctx context.Context, target any, opts ...LoadOption) error {
	options := loadOptions{logger: log.Nop(), validate: true}
	for _, opt := range opts {
		opt(&options)
	}

	sources := options.sources
	if len(sources) == 0 {
		for _, s := range internal.BuildSources(options.envPrefix, options.files, internal.FileOptions{Logger: options.logger}) {
			sources = append(sources, s)
		}
	}

	snapshots := make([]map[string]string, 0, len(sources))
	for i, src := range sources {
		snapshot, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("source %d load failed: %w", i, err)
		}
		snapshots = append(snapshots, snapshot)
	}

	merged := internal.Merge(snapshots...)
	if err := internal.BindToStruct(merged, target); err != nil {
		return err
	}
	if options.validate {
		if err := ValidateStruct(nil, target); err != nil {
			return err
		}
	}

	options.logger.Debug("configuration bound", log.Int("sources", len(sources)), log.Int("keys", len(merged)))
	return nil
}
