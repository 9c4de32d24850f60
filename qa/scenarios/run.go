package scenarios

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/sampler/core/sampling"
	"github.com/kilianp07/sampler/core/sensor"
	"github.com/kilianp07/sampler/infra/logger"
)

type scriptedReader struct {
	mu    sync.Mutex
	calls int
	raw   sensor.RawSample
	fail  map[int]bool
}

func (r *scriptedReader) ReadRaw(context.Context) (sensor.RawSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := r.calls
	r.calls++
	if r.fail[call] {
		return 0, errors.New("scripted sensor failure")
	}
	return r.raw, nil
}

func (r *scriptedReader) Close() error { return nil }

type scriptedPublisher struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
	lines []string
}

func (p *scriptedPublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := p.calls
	p.calls++
	if p.fail[call] {
		return errors.New("scripted publish failure")
	}
	p.lines = append(p.lines, string(payload))
	return nil
}

// Result aggregates the run records of a scenario.
type Result struct {
	Rejected  int
	Published int
	Skipped   int
	Dropped   int
	Ticks     []int
}

// Play feeds every command through an ingestor and executes the accepted jobs
// in order.
func Play(ctx context.Context, sc *Scenario) (Result, error) {
	clk := clock.New()
	q := sampling.NewQueue()
	ing := sampling.NewIngestor(q, clk, logger.NopLogger{})

	reader := &scriptedReader{raw: sensor.RawSample(sc.Raw), fail: indexSet(sc.SensorFailReads)}
	pub := &scriptedPublisher{fail: indexSet(sc.PublishFailCalls)}
	s, err := sampling.NewSampler(q, reader, sensor.LMT86, pub, sampling.NewRuntime(clk), logger.NopLogger{})
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, c := range sc.Commands {
		before := q.Len()
		ing.HandleCommand("scenario", []byte(c))
		if q.Len() == before {
			res.Rejected++
		}
	}
	for q.Len() > 0 {
		job, err := q.Pop(ctx)
		if err != nil {
			return res, err
		}
		rec := s.Execute(ctx, job)
		res.Published += rec.Published
		res.Skipped += rec.Skipped
		res.Dropped += rec.Dropped
	}
	for _, line := range pub.lines {
		head, _, _ := strings.Cut(line, ",")
		tick, err := strconv.Atoi(head)
		if err != nil {
			return res, err
		}
		res.Ticks = append(res.Ticks, tick)
	}
	return res, nil
}

func RunScenario(t *testing.T, sc *Scenario) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := Play(ctx, sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	want := sc.Expected
	if res.Rejected != want.Rejected {
		t.Errorf("scenario %s expected %d rejected, got %d", sc.Name, want.Rejected, res.Rejected)
	}
	if res.Published != want.Published {
		t.Errorf("scenario %s expected %d published, got %d", sc.Name, want.Published, res.Published)
	}
	if res.Skipped != want.Skipped {
		t.Errorf("scenario %s expected %d skipped, got %d", sc.Name, want.Skipped, res.Skipped)
	}
	if res.Dropped != want.Dropped {
		t.Errorf("scenario %s expected %d dropped, got %d", sc.Name, want.Dropped, res.Dropped)
	}
	if want.Ticks != nil && !equalInts(res.Ticks, want.Ticks) {
		t.Errorf("scenario %s expected ticks %v, got %v", sc.Name, want.Ticks, res.Ticks)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
