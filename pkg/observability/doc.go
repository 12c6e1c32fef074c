/*
Package observability provides tools for monitoring the Strata engine.

Metrics exposes Prometheus collectors fed by lifecycle hooks, so any batch
started with Metrics.Hooks() reports token throughput, rerolls and failures.
Setup wires OpenTelemetry tracing; the session package opens one span per
batch and one per token on the global tracer provider.
*/
package observability
