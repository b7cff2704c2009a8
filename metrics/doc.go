// Package metrics wires the engine's route-lookup, host-lookup and
// backend-proxy instrumentation into github.com/prometheus/client_golang,
// following the subsystem-per-concern layout of skipper's Prometheus
// metrics backend. The handler is meant to be mounted on a support
// listener rather than the main request path.
package metrics
