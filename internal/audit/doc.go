// Package audit delivers security events (logins, token revocations, password
// changes) to a Sink without blocking the request path.
//
// Sinks: NoOpSink, ChannelSink for tests, JSONWriterSink for line-delimited
// JSON, and ZapSink for structured logs. The Dispatcher owns one worker
// goroutine and either drops or blocks when its buffer is full.
//
// Which events exist is decided by internal/flows, not here.
package audit
