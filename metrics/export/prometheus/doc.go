// Package prometheus renders engine counters and the validate latency
// histogram in the Prometheus text format without a client library or a
// global registry. httpapi mounts [Exporter.Handler] at /metrics.
package prometheus
