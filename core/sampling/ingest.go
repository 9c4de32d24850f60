package sampling

import (
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/kilianp07/sampler/core/command"
	"github.com/kilianp07/sampler/core/logger"
	"github.com/kilianp07/sampler/internal/eventbus"
)

// maxLoggedPayload bounds how much of a rejected payload ends up in logs.
const maxLoggedPayload = 64

// Ingestor parses command payloads and enqueues the accepted ones. It
// implements mqtt.CommandHandler.
type Ingestor struct {
	queue  *Queue
	clock  clock.Clock
	log    logger.Logger
	events eventbus.Publisher[LifecycleEvent]
}

// NewIngestor creates an Ingestor feeding q.
func NewIngestor(q *Queue, clk clock.Clock, log logger.Logger) *Ingestor {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Ingestor{queue: q, clock: clk, log: log}
}

// SetEvents attaches a lifecycle event publisher.
func (i *Ingestor) SetEvents(p eventbus.Publisher[LifecycleEvent]) { i.events = p }

// HandleCommand is called for every message on the command topic. Invalid
// payloads are logged and dropped.
func (i *Ingestor) HandleCommand(topic string, payload []byte) {
	commandsReceived.Inc()
	cmd, err := command.Parse(payload)
	if err != nil {
		commandsRejected.WithLabelValues(command.Reason(err)).Inc()
		i.log.Warnf("dropping payload %q from %s: %v", truncate(payload), topic, err)
		return
	}
	job := Job{ID: uuid.NewString(), Command: cmd, Received: i.clock.Now()}
	if i.events != nil {
		i.events.Publish(LifecycleEvent{JobID: job.ID, State: StateQueued, Command: cmd, Time: job.Received})
	}
	i.queue.Push(job)
	i.log.Infof("queued %s as job %s (%d waiting)", cmd, job.ID, i.queue.Len())
}

func truncate(b []byte) []byte {
	if len(b) > maxLoggedPayload {
		return b[:maxLoggedPayload]
	}
	return b
}
