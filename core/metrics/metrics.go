package metrics

import "time"

// SampleEvent describes one published measurement.
type SampleEvent struct {
	JobID     string
	TickIndex int
	Raw       uint16
	Value     float64
	UptimeMS  int64
	Time      time.Time
}

// MetricsSink records published samples.
type MetricsSink interface {
	RecordSample(ev SampleEvent) error
}

// Failure stages.
const (
	StageSensor  = "sensor"
	StagePublish = "publish"
)

// FailureEvent describes a tick that did not produce a published sample.
type FailureEvent struct {
	JobID     string
	TickIndex int
	Stage     string
	Err       string
	Time      time.Time
}

// FailureRecorder records failed ticks.
type FailureRecorder interface {
	RecordFailure(ev FailureEvent) error
}

// RunEvent summarizes a completed command.
type RunEvent struct {
	JobID           string
	NumMeasurements uint16
	IntervalMS      uint16
	Published       int
	Skipped         int
	Dropped         int
	Mean            float64
	Min             float64
	Max             float64
	Started         time.Time
	Finished        time.Time
}

// Duration is the wall-clock length of the run.
func (ev RunEvent) Duration() time.Duration { return ev.Finished.Sub(ev.Started) }

// RunRecorder records completed runs.
type RunRecorder interface {
	RecordRun(ev RunEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSample(SampleEvent) error   { return nil }
func (NopSink) RecordFailure(FailureEvent) error { return nil }
func (NopSink) RecordRun(RunEvent) error         { return nil }
