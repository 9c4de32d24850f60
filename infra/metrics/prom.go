package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/sampler/core/metrics"
)

// PromSink exposes sample values and run outcomes as Prometheus metrics.
type PromSink struct {
	lastValue *prometheus.GaugeVec
	lastRaw   *prometheus.GaugeVec
	values    prometheus.Histogram
	runs      *prometheus.CounterVec
	lastRun   *prometheus.GaugeVec
}

// NewPromSink registers sink metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	lastValue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sampler_temperature_celsius",
		Help: "Last published temperature",
	}, []string{"job_id"})
	lastRaw := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sampler_raw_reading",
		Help: "Last raw sensor reading that was published",
	}, []string{"job_id"})
	values := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sampler_temperature_distribution_celsius",
		Help:    "Distribution of published temperatures",
		Buckets: prometheus.LinearBuckets(-40, 10, 20),
	})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sampler_runs_total",
		Help: "Executed commands by outcome",
	}, []string{"outcome"})
	lastRun := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sampler_last_run",
		Help: "Statistics of the most recent run",
	}, []string{"stat"})

	var err error
	if lastValue, err = register(reg, lastValue); err != nil {
		return nil, err
	}
	if lastRaw, err = register(reg, lastRaw); err != nil {
		return nil, err
	}
	if values, err = register(reg, values); err != nil {
		return nil, err
	}
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if lastRun, err = register(reg, lastRun); err != nil {
		return nil, err
	}
	return &PromSink{lastValue: lastValue, lastRaw: lastRaw, values: values, runs: runs, lastRun: lastRun}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSample updates the last value gauges and the distribution.
func (s *PromSink) RecordSample(ev coremetrics.SampleEvent) error {
	s.lastValue.Reset()
	s.lastValue.WithLabelValues(ev.JobID).Set(ev.Value)
	s.lastRaw.Reset()
	s.lastRaw.WithLabelValues(ev.JobID).Set(float64(ev.Raw))
	s.values.Observe(ev.Value)
	return nil
}

// RecordRun counts the run by outcome and exposes its statistics.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	outcome := "complete"
	if ev.Published < int(ev.NumMeasurements) {
		outcome = "partial"
	}
	s.runs.WithLabelValues(outcome).Inc()
	s.lastRun.WithLabelValues("published").Set(float64(ev.Published))
	s.lastRun.WithLabelValues("skipped").Set(float64(ev.Skipped))
	s.lastRun.WithLabelValues("dropped").Set(float64(ev.Dropped))
	s.lastRun.WithLabelValues("duration_seconds").Set(ev.Duration().Seconds())
	if ev.Published > 0 {
		s.lastRun.WithLabelValues("mean").Set(ev.Mean)
		s.lastRun.WithLabelValues("min").Set(ev.Min)
		s.lastRun.WithLabelValues("max").Set(ev.Max)
	}
	return nil
}
