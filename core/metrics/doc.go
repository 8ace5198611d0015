// Package metrics defines interfaces for recording platform activity:
// belief ingestion, scheduling and forecasting outcomes and job state
// transitions. Sinks like the Prometheus and InfluxDB implementations in
// infra/metrics record these events and can be combined with NewMultiSink;
// the factory helpers return a MultiSink automatically when multiple sinks
// are configured.
package metrics
