// Package runtimex owns the named resources of a process and their lifecycle.
//
// # Overview
//
// A Manager holds resources by name. Startup builds them from a settings
// value through a Registry of factories, one per settings field; HealthReport
// aggregates their checks; CloseAll releases them on shutdown. Serve wires the
// manager to the health and metrics HTTP endpoints and drives shutdown.
//
// Capabilities are probed, not declared: a registered value with a
// HealthCheck method appears in health reports, and one with Close(ctx) or
// io.Closer is closed on shutdown.
//
// # Startup
//
// Factories run concurrently and Startup waits for all of them. When any
// fails, the ones that succeeded are closed and nothing is registered; the
// first failure in registration order is returned as is. Required names are
// checked only after a successful batch.
//
// The default registry carries built-in factories for the storex adapters
// (sqlite, mysql, postgres, redis, minio, r2, s3) bound to the fields of
// configx.Resources. They never replace a factory the caller registered under
// the same name.
//
// # Shutdown
//
// CloseAll attempts every resource, removes the ones that closed and returns
// a *ShutdownError naming the rest. Calling it again retries only those.
//
// # Usage
//
//	mgr := runtimex.NewManager(runtimex.WithLogger(logger))
//	if err := mgr.Startup(ctx, cfg.Resources, cfg.Required...); err != nil {
//		return err
//	}
//	cache, err := runtimex.Lookup[*storex.RedisCache](mgr, "redis")
//
// # Layer
//
// runtimex belongs to Layer 3 (L3) and depends on storex, healthx and obsx.
package runtimex
