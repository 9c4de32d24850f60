// Package runlog keeps a history of completed sampling runs.
package runlog

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/sampler/core/command"
)

// Summary holds descriptive statistics of the values published by a run.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes the statistics of values. The standard deviation is the
// unbiased estimate and is zero for fewer than two values.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	if len(values) == 1 {
		s.Mean = values[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	return s
}

// Record captures one executed command.
type Record struct {
	JobID       string          `json:"job_id"`
	Command     command.Command `json:"command"`
	Received    time.Time       `json:"received"`
	Started     time.Time       `json:"started"`
	Finished    time.Time       `json:"finished"`
	Published   int             `json:"published"`
	Skipped     int             `json:"skipped"`
	Dropped     int             `json:"dropped"`
	Interrupted bool            `json:"interrupted,omitempty"`
	Summary     Summary         `json:"summary"`
}

// Query filters records on their finish time. Zero bounds are open and a
// positive Limit keeps the most recent records.
type Query struct {
	Start time.Time
	End   time.Time
	Limit int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Finished.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Finished.After(q.End) {
		return false
	}
	return true
}

func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
