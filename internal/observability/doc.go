// Package observability provides logging, metrics, and context propagation
// utilities for the theme discovery service.
//
// The package wraps zerolog for structured logging and Prometheus for metrics.
// Context helpers carry trigger delivery, project, and document identifiers
// across pipeline stage boundaries so log lines from one trigger handling can
// be correlated.
package observability
