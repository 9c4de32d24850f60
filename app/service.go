package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/sampler/config"
	coremetrics "github.com/kilianp07/sampler/core/metrics"
	"github.com/kilianp07/sampler/core/monitoring"
	coremqtt "github.com/kilianp07/sampler/core/mqtt"
	"github.com/kilianp07/sampler/core/runlog"
	"github.com/kilianp07/sampler/core/sampling"
	"github.com/kilianp07/sampler/core/sensor"
	"github.com/kilianp07/sampler/infra/logger"
	"github.com/kilianp07/sampler/infra/metrics"
	infmon "github.com/kilianp07/sampler/infra/monitoring"
	"github.com/kilianp07/sampler/infra/mqtt"
	_ "github.com/kilianp07/sampler/infra/sensor"
	"github.com/kilianp07/sampler/internal/eventbus"
)

// Transport is the broker link used by the service.
type Transport interface {
	coremqtt.Publisher
	Disconnect()
}

// Dialer connects a Transport that delivers command payloads to handler.
type Dialer func(cfg mqtt.Config, handler coremqtt.CommandHandler) (Transport, error)

// DialPaho is the Dialer backed by the Paho client.
func DialPaho(cfg mqtt.Config, handler coremqtt.CommandHandler) (Transport, error) {
	c, err := mqtt.NewPahoClient(cfg, handler)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options overrides collaborators of the service. Zero fields use the
// production implementations.
type Options struct {
	Dial    Dialer
	Clock   clock.Clock
	Reader  sensor.Reader
	Monitor monitoring.Monitor
}

// Service wires the command listener, the job queue and the sampler.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	transport Transport
	reader    sensor.Reader
	sampler   *sampling.Sampler
	ingestor  *sampling.Ingestor
	bus       *eventbus.TypedBus[sampling.LifecycleEvent]
	events    <-chan sampling.LifecycleEvent
	history   runlog.Store
	monitor   monitoring.Monitor
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Service with some collaborators replaced.
func NewWithOptions(cfg *config.Config, opts Options) (svc *Service, err error) {
	logg := logger.New("service")
	if opts.Dial == nil {
		opts.Dial = DialPaho
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	rt := sampling.NewRuntime(opts.Clock)

	s := &Service{cfg: cfg, log: logg, monitor: monitoring.OrNop(opts.Monitor)}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if opts.Monitor == nil {
		if s.monitor, err = infmon.NewSentryMonitor(cfg.Sentry); err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
	}

	reader := opts.Reader
	if reader == nil {
		if reader, err = sensor.NewReader(cfg.Sensor.Module()); err != nil {
			return nil, fmt.Errorf("sensor %s: %w", cfg.Sensor.Type, err)
		}
	}
	s.reader = sensor.Bounded(reader, sensor.RawSample(cfg.Sensor.MaxRaw))

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	if cfg.RunLog.Enabled {
		st, err := cfg.RunLog.Open()
		if err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
		s.history = st
	}

	queue := sampling.NewQueue()
	s.bus = eventbus.NewTyped[sampling.LifecycleEvent]()
	s.events = s.bus.SubscribeSize(64)
	s.ingestor = sampling.NewIngestor(queue, opts.Clock, logger.New("ingestor"))
	s.ingestor.SetEvents(s.bus)

	s.transport, err = opts.Dial(cfg.MQTT, s.ingestor)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	s.sampler, err = sampling.NewSampler(queue, s.reader, cfg.Sensor.Calibration, s.transport, rt, logger.New("sampler"))
	if err != nil {
		return nil, err
	}
	s.sampler.SetMetrics(sink)
	s.sampler.SetMonitor(s.monitor)
	s.sampler.SetEvents(s.bus)
	if s.history != nil {
		s.sampler.SetHistory(s.history)
	}
	return s, nil
}

// Run executes commands until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.monitor.Recover()
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.watch()
	s.log.Infof("listening on %s, answering on %s", s.cfg.MQTT.CommandTopic, s.cfg.MQTT.ResponseTopic)
	return s.sampler.Run(ctx)
}

func (s *Service) watch() {
	for ev := range s.events {
		switch ev.State {
		case sampling.StateCompleted:
			if ev.Record != nil {
				sum := ev.Record.Summary
				s.log.Debugw("job completed", map[string]any{
					"job_id": ev.JobID, "command": ev.Command.String(),
					"count": sum.Count, "mean": sum.Mean, "min": sum.Min, "max": sum.Max,
				})
			}
		default:
			s.log.Debugf("job %s %s", ev.JobID, ev.State)
		}
	}
}

// HandleCommand feeds a payload as if it arrived on the command topic.
func (s *Service) HandleCommand(topic string, payload []byte) {
	s.ingestor.HandleCommand(topic, payload)
}

// Events exposes job lifecycle transitions.
func (s *Service) Events() *eventbus.TypedBus[sampling.LifecycleEvent] { return s.bus }

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.transport != nil {
		s.transport.Disconnect()
	}
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
