// Package metrics holds lock-free counters and the validate-latency
// histogram. Every counter sits on its own cache line so hot paths like
// access-token validation do not contend.
//
// A nil or disabled [Metrics] accepts writes and discards them. Exporters
// read through [Metrics.Snapshot]; nothing here knows about Prometheus or
// OpenTelemetry.
package metrics
