package sampling

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsReceived prometheus.Counter
	commandsRejected *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	samplesPublished prometheus.Counter
	sampleFailures   *prometheus.CounterVec
	tickOverrun      prometheus.Histogram
	runDuration      prometheus.Histogram
)

func newCollectors() {
	commandsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sampler_commands_received_total",
		Help: "Number of payloads received on the command topic",
	})
	commandsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_commands_rejected_total",
			Help: "Number of payloads that failed to parse",
		},
		[]string{"reason"},
	)
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sampler_queue_depth",
		Help: "Accepted commands waiting for execution",
	})
	samplesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sampler_samples_published_total",
		Help: "Number of sample lines published",
	})
	sampleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_sample_failures_total",
			Help: "Ticks that did not produce a published sample",
		},
		[]string{"stage"},
	)
	tickOverrun = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sampler_tick_overrun_seconds",
		Help:    "How late a tick was handed out relative to its interval",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sampler_run_duration_seconds",
		Help:    "Wall-clock duration of executed commands",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
}

func init() {
	newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers sampling metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commandsReceived, commandsRejected, queueDepth, samplesPublished, sampleFailures, tickOverrun, runDuration)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
