// Package obsx wires tracing and metrics for the shared resource runtime.
//
// # Overview
//
// obsx owns two concerns. The first is the process-wide Recorder that every
// resource adapter reports operation outcomes to; it is a no-op until
// something installs a real implementation with SetRecorder. The second is the
// Observability context, which builds OpenTelemetry tracer and meter providers
// (OTLP/gRPC push plus an optional Prometheus pull registry) and installs an
// OTelRecorder while Active.
//
// # Key Types
//
//   - Recorder: ObserveOperation, ObserveError, ObservePoolUsage
//   - PrometheusRecorder: Recorder backed by client_golang collectors
//   - OTelRecorder: Recorder backed by otel instruments plus a span per operation
//   - Observability: Unconfigured/Active state machine around the providers
//
// # Concurrency Model
//
// The process recorder is guarded by an RWMutex and can be swapped at any time.
// Recorders are safe for concurrent use. Observability serializes Bootstrap
// and Shutdown.
//
// # Error Semantics
//
// Bootstrap on an Active context fails with ErrAlreadyActive. Provider
// construction failures are wrapped as INTERNAL. Shutdown always returns the
// context to Unconfigured and restores the recorder it replaced.
//
// # Usage
//
//	obs := obsx.New(obsx.WithLogger(logger))
//	if err := obs.Bootstrap(ctx, settings.Observability); err != nil {
//		return err
//	}
//	defer obs.Shutdown(ctx)
//
//	mux.Handle("/metrics", obs.PrometheusHandler())
package obsx
