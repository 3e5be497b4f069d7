// Package metrics provides lock-free counters and one latency histogram for
// the authentication engine.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The access verification histogram uses 8 fixed buckets
// (≤5ms … +Inf). Both are allocation-free on the write path.
//
// Export to Prometheus and OpenTelemetry lives in metrics/export and reads
// Snapshot values; this package performs no I/O.
package metrics
