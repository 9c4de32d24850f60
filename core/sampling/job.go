package sampling

import (
	"strconv"
	"time"

	"github.com/kilianp07/sampler/core/command"
	"github.com/kilianp07/sampler/core/runlog"
)

// Job is an accepted command waiting to be executed.
type Job struct {
	ID       string
	Command  command.Command
	Received time.Time
}

// Measurement is one published sample.
type Measurement struct {
	Tick     int
	Value    float64
	UptimeMS int64
}

// Format renders the response line "<tick>,<value>,<uptime_ms>". The value is
// printed with the shortest decimal form that round-trips as float32.
func (m Measurement) Format() string {
	b := make([]byte, 0, 32)
	b = strconv.AppendInt(b, int64(m.Tick), 10)
	b = append(b, ',')
	b = strconv.AppendFloat(b, float64(float32(m.Value)), 'f', -1, 32)
	b = append(b, ',')
	b = strconv.AppendInt(b, m.UptimeMS, 10)
	return string(b)
}

// State is a lifecycle stage of a Job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// LifecycleEvent is published on the event bus whenever a Job changes state.
// Record is set on completion only.
type LifecycleEvent struct {
	JobID   string
	State   State
	Command command.Command
	Time    time.Time
	Record  *runlog.Record
}
