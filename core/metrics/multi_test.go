package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	samples  int
	failures int
	err      error
}

func (r *recordSink) RecordSample(SampleEvent) error {
	r.samples++
	return r.err
}

func (r *recordSink) RecordFailure(FailureEvent) error {
	r.failures++
	return nil
}

// sampleOnly does not implement the optional recorders.
type sampleOnly struct{ samples int }

func (s *sampleOnly) RecordSample(SampleEvent) error {
	s.samples++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &sampleOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordSample(SampleEvent{}); err != nil {
		t.Fatalf("record sample: %v", err)
	}
	if err := m.RecordFailure(FailureEvent{}); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := m.RecordRun(RunEvent{}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if s1.samples != 1 || s2.samples != 1 || s1.failures != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSinkKeepsForwardingOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &sampleOnly{}
	err := NewMultiSink(s1, s2).RecordSample(SampleEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if s2.samples != 1 {
		t.Fatalf("second sink skipped")
	}
}
