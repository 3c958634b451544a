// Package observability wires OpenTelemetry tracing and metrics. When
// disabled, the global no-op providers stay in place and every helper here
// still works.
package observability
