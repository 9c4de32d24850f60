package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/sampler/core/metrics"
	"github.com/kilianp07/sampler/infra/logger"
)

// InfluxConfig holds the connection settings of the influx sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Device is added as a tag to every point when set.
	Device string `json:"device"`
}

// InfluxSink writes samples and run summaries to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	device   string
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		device:   cfg.Device,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) point(measurement, jobID string) *write.Point {
	p := write.NewPointWithMeasurement(measurement).AddTag("job_id", jobID)
	if s.device != "" {
		p = p.AddTag("device", s.device)
	}
	return p
}

// RecordSample writes one temperature_sample point.
func (s *InfluxSink) RecordSample(ev coremetrics.SampleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := s.point("temperature_sample", ev.JobID).
		AddField("tick", ev.TickIndex).
		AddField("raw", int64(ev.Raw)).
		AddField("value", round3(ev.Value)).
		AddField("uptime_ms", ev.UptimeMS).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFailure writes one sample_failure point.
func (s *InfluxSink) RecordFailure(ev coremetrics.FailureEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := s.point("sample_failure", ev.JobID).
		AddTag("stage", ev.Stage).
		AddField("tick", ev.TickIndex).
		AddField("error", ev.Err).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes one sampling_run point stamped with the finish time.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := s.point("sampling_run", ev.JobID).
		AddField("num_measurements", int64(ev.NumMeasurements)).
		AddField("interval_ms", int64(ev.IntervalMS)).
		AddField("published", ev.Published).
		AddField("skipped", ev.Skipped).
		AddField("dropped", ev.Dropped).
		AddField("duration_ms", ev.Duration().Milliseconds())
	if ev.Published > 0 {
		p = p.AddField("mean", round3(ev.Mean)).
			AddField("min", round3(ev.Min)).
			AddField("max", round3(ev.Max))
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Finished))
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
