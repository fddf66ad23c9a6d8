// Package storex provides the built-in backend adapters used by the runtime
// manager.
//
// # Overview
//
// Each adapter wraps one client library and exposes a small set of
// operations plus the two capabilities the manager looks for:
//
//   - SQLStore: GORM over sqlite, mysql or postgres
//   - PostgresPool: pgx connection pool
//   - RedisCache: go-redis client with key prefix and default TTL
//   - BlobStore: S3-compatible object store (AWS S3, MinIO, Cloudflare R2)
//
// # Error Semantics
//
// Every operation translates its failure exactly once through a faultx.Table
// before returning, so callers only see *faultx.Error values. Settings that
// are rejected before any network call are KindValidation. Connection setup
// runs under retryx and retries only transient failures.
//
// # Metrics
//
// Operations record latency, throughput and errors on the recorder given by
// WithRecorder, or the process-wide obsx recorder when none is given. Health
// checks additionally record a pool usage snapshot where the client exposes
// one.
//
// # Usage
//
//	cache, err := storex.NewRedisCache(ctx, storex.RedisSettings{
//		URL:       "redis://localhost:6379/0",
//		KeyPrefix: "orders",
//	}, storex.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer cache.Close(ctx)
package storex
