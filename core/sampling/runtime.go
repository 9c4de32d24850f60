package sampling

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Runtime carries the process start time and the clock every component
// measures against.
type Runtime struct {
	Clock clock.Clock
	Start time.Time
}

// NewRuntime captures the start instant from clk. A nil clock uses wall time.
func NewRuntime(clk clock.Clock) Runtime {
	if clk == nil {
		clk = clock.New()
	}
	return Runtime{Clock: clk, Start: clk.Now()}
}

// Uptime is the time elapsed since Start.
func (r Runtime) Uptime() time.Duration { return r.Clock.Since(r.Start) }

// UptimeMS is the elapsed time since Start in whole milliseconds.
func (r Runtime) UptimeMS() int64 { return r.Uptime().Milliseconds() }
