package internal

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.eggybyte.com/orchid/core/log"
)

// ManagerImpl merges several sources and republishes the merge when any of
// them changes.
type ManagerImpl struct {
	logger   log.Logger
	sources  []Source
	debounce time.Duration

	mu        sync.RWMutex
	perSource []map[string]string
	snapshot  map[string]string

	subsMu     sync.RWMutex
	updateSubs map[int]func(map[string]string)
	nextSubID  int
}

// NewManager creates a new configuration manager.
func NewManager(logger log.Logger, sources []Source, debounce time.Duration) (*ManagerImpl, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	return &ManagerImpl{
		logger:     logger,
		sources:    sources,
		debounce:   debounce,
		perSource:  make([]map[string]string, len(sources)),
		snapshot:   make(map[string]string),
		updateSubs: make(map[int]func(map[string]string)),
	}, nil
}

// Initialize loads every source and starts watching them until ctx is cancelled.
func (m *ManagerImpl) Initialize(ctx context.Context) error {
	for i, source := range m.sources {
		snapshot, err := source.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load initial configuration: source %d: %w", i, err)
		}
		m.perSource[i] = snapshot
	}

	m.mu.Lock()
	m.snapshot = Merge(m.perSource...)
	keys := len(m.snapshot)
	m.mu.Unlock()
	m.logger.Info("configuration loaded", log.Int("sources", len(m.sources)), log.Int("keys", keys))

	for i, source := range m.sources {
		updates, err := source.Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to start watching: source %d: %w", i, err)
		}
		go m.watchSource(ctx, i, updates)
	}

	return nil
}

func (m *ManagerImpl) watchSource(ctx context.Context, sourceIndex int, updates <-chan map[string]string) {
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(m.debounce, func() {
				m.applyUpdate(sourceIndex, snapshot)
			})
			timerMu.Unlock()
		}
	}
}

// applyUpdate replaces one source's snapshot and re-merges from the cache.
func (m *ManagerImpl) applyUpdate(sourceIndex int, update map[string]string) {
	m.mu.Lock()
	m.perSource[sourceIndex] = update
	merged := Merge(m.perSource...)
	m.snapshot = merged
	m.mu.Unlock()

	m.logger.Info("configuration updated", log.Int("source", sourceIndex), log.Int("keys", len(merged)))
	m.notifySubscribers(maps.Clone(merged))
}

func (m *ManagerImpl) notifySubscribers(snapshot map[string]string) {
	m.subsMu.RLock()
	subs := make([]func(map[string]string), 0, len(m.updateSubs))
	for _, fn := range m.updateSubs {
		subs = append(subs, fn)
	}
	m.subsMu.RUnlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Snapshot returns a copy of the current configuration.
func (m *ManagerImpl) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.snapshot)
}

// Value returns the value for a key and whether it exists.
func (m *ManagerImpl) Value(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, exists := m.snapshot[key]
	return value, exists
}

// Bind decodes the current configuration into target. With onUpdate set,
// target is rebound on every later update and onUpdate is called after each
// successful rebind. Rebinds of one target are serialized and onUpdate runs
// under the same lock, so it may read target; other readers must synchronize
// their own access.
func (m *ManagerImpl) Bind(target any, onUpdate func()) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}
	if err := BindToStruct(m.Snapshot(), target); err != nil {
		return err
	}
	if onUpdate == nil {
		return nil
	}

	var mu sync.Mutex
	m.OnUpdate(func(snapshot map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		if err := BindToStruct(snapshot, target); err != nil {
			m.logger.Error(err, "failed to rebind configuration")
			return
		}
		onUpdate()
	})
	return nil
}

// OnUpdate subscribes to configuration update events and returns an unsubscribe func.
func (m *ManagerImpl) OnUpdate(fn func(snapshot map[string]string)) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subID := m.nextSubID
	m.nextSubID++
	m.updateSubs[subID] = fn

	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.updateSubs, subID)
	}
}
