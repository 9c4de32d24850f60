// Package metrics defines the events emitted by the sampler and the sinks
// that record them. Sinks such as PromSink and InfluxSink (infra/metrics)
// record published samples, failed ticks and completed runs, and can be
// combined with NewMultiSink. NewMetricsSink builds the configured set and
// returns a MultiSink automatically when several sinks are listed.
package metrics
