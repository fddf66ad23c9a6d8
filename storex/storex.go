package storex

import (
	"context"

	"go.eggybyte.com/orchid/healthx"
)

// Store is the contract every adapter in this package satisfies. The runtime
// manager probes the same two methods when deciding whether a resource can be
// health-checked or closed.
type Store interface {
	// HealthCheck probes the backend. Failures are reported in the status,
	// not as the error.
	HealthCheck(ctx context.Context) (healthx.Status, error)

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*PostgresPool)(nil)
	_ Store = (*RedisCache)(nil)
)

// HealthChecker is implemented by adapters that probe a backend but own no
// connection to release, such as BlobStore.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (healthx.Status, error)
}

var _ HealthChecker = (*BlobStore)(nil)
