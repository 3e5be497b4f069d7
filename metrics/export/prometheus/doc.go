// Package prometheus exposes an Engine's counters and latency histogram as a
// prometheus.Collector. Series are named authcore_*_total and
// authcore_verify_access_latency_seconds.
//
// Nothing is registered globally; callers register the Collector or mount
// Handler.
package prometheus
