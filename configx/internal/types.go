package internal

import (
	"context"
)

// Source describes a configuration source that can load and watch for updates.
// Implementations must be thread-safe and honor context cancellation.
type Source interface {
	// Load reads the current configuration snapshot.
	Load(ctx context.Context) (map[string]string, error)

	// Watch publishes fresh snapshots on the returned channel. The channel is
	// closed when ctx is cancelled.
	Watch(ctx context.Context) (<-chan map[string]string, error)
}

// idleWatch returns a channel that never delivers and closes with ctx.
func idleWatch(ctx context.Context) <-chan map[string]string {
	ch := make(chan map[string]string)
	go func() {
		defer close(ch)
		<-ctx.Done()
	}()
	return ch
}
