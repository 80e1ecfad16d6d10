// Package metrics defines the events recorded for every prediction and
// training run, and the sink interface that stores them. Concrete sinks
// (Prometheus, InfluxDB) register themselves from infra/metrics; several
// configured sinks are combined into a MultiSink.
package metrics
