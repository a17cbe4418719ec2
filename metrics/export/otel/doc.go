// Package otel exposes engine metrics through an OpenTelemetry Meter.
//
// Counters become Int64ObservableCounter instruments; the latency histogram is
// published as one cumulative gauge per bucket plus a count gauge. The caller
// owns the MeterProvider.
package otel
