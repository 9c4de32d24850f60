package sampling

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/sampler/core/logger"
	"github.com/kilianp07/sampler/core/metrics"
	"github.com/kilianp07/sampler/core/monitoring"
	"github.com/kilianp07/sampler/core/mqtt"
	"github.com/kilianp07/sampler/core/runlog"
	"github.com/kilianp07/sampler/core/scheduler"
	"github.com/kilianp07/sampler/core/sensor"
	"github.com/kilianp07/sampler/internal/eventbus"
)

// Sampler executes queued jobs one at a time.
type Sampler struct {
	queue     *Queue
	reader    sensor.Reader
	calib     sensor.Calibration
	publisher mqtt.Publisher
	rt        Runtime
	log       logger.Logger

	metrics metrics.MetricsSink
	monitor monitoring.Monitor
	events  eventbus.Publisher[LifecycleEvent]
	history runlog.Store
}

// NewSampler wires a Sampler. Optional collaborators are attached with the
// Set methods before Run is called.
func NewSampler(q *Queue, reader sensor.Reader, calib sensor.Calibration, pub mqtt.Publisher, rt Runtime, log logger.Logger) (*Sampler, error) {
	if q == nil {
		return nil, errors.New("sampling: queue is required")
	}
	if reader == nil {
		return nil, errors.New("sampling: sensor reader is required")
	}
	if pub == nil {
		return nil, errors.New("sampling: publisher is required")
	}
	if rt.Clock == nil {
		return nil, errors.New("sampling: runtime clock is required")
	}
	if err := calib.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Sampler{
		queue:     q,
		reader:    reader,
		calib:     calib,
		publisher: pub,
		rt:        rt,
		log:       log,
		metrics:   metrics.NopSink{},
		monitor:   monitoring.NopMonitor{},
	}, nil
}

// SetMetrics sets the sink receiving samples, failures and run summaries.
func (s *Sampler) SetMetrics(m metrics.MetricsSink) {
	if m == nil {
		m = metrics.NopSink{}
	}
	s.metrics = m
}

// SetMonitor sets the error reporter.
func (s *Sampler) SetMonitor(m monitoring.Monitor) { s.monitor = monitoring.OrNop(m) }

// SetEvents attaches a lifecycle event publisher.
func (s *Sampler) SetEvents(p eventbus.Publisher[LifecycleEvent]) { s.events = p }

// SetHistory sets the store receiving one record per executed job.
func (s *Sampler) SetHistory(st runlog.Store) { s.history = st }

// Run executes jobs until ctx is cancelled. A job in progress when ctx ends
// stops at its next tick.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Infof("ready to accept commands")
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		s.Execute(ctx, job)
	}
}

// Execute performs the sampling run for job and returns its record.
func (s *Sampler) Execute(ctx context.Context, job Job) runlog.Record {
	cmd := job.Command
	log := s.log.With("job_id", job.ID)
	rec := runlog.Record{
		JobID:    job.ID,
		Command:  cmd,
		Received: job.Received,
		Started:  s.rt.Clock.Now(),
	}
	s.emit(LifecycleEvent{JobID: job.ID, State: StateRunning, Command: cmd, Time: rec.Started})
	log.Infof("starting %d measurements every %s", cmd.NumMeasurements, cmd.Interval())

	values := make([]float64, 0, cmd.NumMeasurements)
	ticks := scheduler.Pace(scheduler.Countdown(cmd.NumMeasurements), cmd.Interval(), s.rt.Clock)
	for tick := range ticks.All(ctx) {
		tickOverrun.Observe(ticks.LastOverrun().Seconds())

		raw, err := s.reader.ReadRaw(ctx)
		if err != nil {
			rec.Skipped++
			s.fail(log, job.ID, tick, metrics.StageSensor, err)
			continue
		}
		m := Measurement{
			Tick:     tick,
			Value:    s.calib.Convert(raw),
			UptimeMS: s.rt.UptimeMS(),
		}
		line := m.Format()
		if err := s.publisher.Publish(ctx, []byte(line)); err != nil {
			rec.Dropped++
			s.fail(log, job.ID, tick, metrics.StagePublish, err)
			continue
		}
		rec.Published++
		samplesPublished.Inc()
		values = append(values, m.Value)
		log.Debugw("sample published", map[string]any{"tick": tick, "raw": uint16(raw), "line": line})
		if err := s.metrics.RecordSample(metrics.SampleEvent{
			JobID:     job.ID,
			TickIndex: tick,
			Raw:       uint16(raw),
			Value:     m.Value,
			UptimeMS:  m.UptimeMS,
			Time:      s.rt.Clock.Now(),
		}); err != nil {
			log.Warnf("metrics sample: %v", err)
		}
	}

	rec.Finished = s.rt.Clock.Now()
	rec.Interrupted = ctx.Err() != nil && rec.Published+rec.Skipped+rec.Dropped < int(cmd.NumMeasurements)
	rec.Summary = runlog.Summarize(values)
	runDuration.Observe(rec.Finished.Sub(rec.Started).Seconds())
	s.finish(ctx, log, rec)
	return rec
}

func (s *Sampler) fail(log logger.Logger, jobID string, tick int, stage string, err error) {
	sampleFailures.WithLabelValues(stage).Inc()
	log.Errorf("tick %d %s: %v", tick, stage, err)
	if stage == metrics.StagePublish {
		s.monitor.CaptureException(fmt.Errorf("publish tick %d: %w", tick, err), map[string]string{"job_id": jobID, "stage": stage})
	}
	if fr, ok := s.metrics.(metrics.FailureRecorder); ok {
		if rerr := fr.RecordFailure(metrics.FailureEvent{
			JobID:     jobID,
			TickIndex: tick,
			Stage:     stage,
			Err:       err.Error(),
			Time:      s.rt.Clock.Now(),
		}); rerr != nil {
			log.Warnf("metrics failure: %v", rerr)
		}
	}
}

func (s *Sampler) finish(ctx context.Context, log logger.Logger, rec runlog.Record) {
	if rec.Interrupted {
		log.Warnf("interrupted after %d of %d ticks", rec.Published+rec.Skipped+rec.Dropped, rec.Command.NumMeasurements)
	}
	log.Infof("finished: %d published, %d skipped, %d dropped in %s",
		rec.Published, rec.Skipped, rec.Dropped, rec.Finished.Sub(rec.Started))

	if rr, ok := s.metrics.(metrics.RunRecorder); ok {
		if err := rr.RecordRun(metrics.RunEvent{
			JobID:           rec.JobID,
			NumMeasurements: rec.Command.NumMeasurements,
			IntervalMS:      rec.Command.IntervalMS,
			Published:       rec.Published,
			Skipped:         rec.Skipped,
			Dropped:         rec.Dropped,
			Mean:            rec.Summary.Mean,
			Min:             rec.Summary.Min,
			Max:             rec.Summary.Max,
			Started:         rec.Started,
			Finished:        rec.Finished,
		}); err != nil {
			log.Warnf("metrics run: %v", err)
		}
	}
	if s.history != nil {
		// the run already happened; record it even when shutting down
		if err := s.history.Append(context.WithoutCancel(ctx), rec); err != nil {
			log.Errorf("run log: %v", err)
		}
	}
	s.emit(LifecycleEvent{JobID: rec.JobID, State: StateCompleted, Command: rec.Command, Time: rec.Finished, Record: &rec})
}

func (s *Sampler) emit(ev LifecycleEvent) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}
