// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the MCP client.
//
// PrometheusMetricsProvider keeps its collectors in a private registry that
// MetricsServer exposes on /metrics. TracingProvider builds an SDK tracer
// provider with an OTLP (gRPC or HTTP) exporter, or none. Middleware wires
// both into a transport so every request yields one observation and one
// client span.
package observability
