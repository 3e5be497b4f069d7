// Package otel publishes an Engine's metrics through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge named <histogram>_bucket_le_<bound>. Callers own the
// MeterProvider.
package otel
