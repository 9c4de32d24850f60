package scheduler

import (
	"context"
	"iter"
	"time"
)

// Clock is the part of github.com/benbjohnson/clock.Clock used for pacing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Producer yields values until it reports false. Once exhausted it must keep
// returning false.
type Producer[T any] interface {
	Next() (T, bool)
}

// ProducerFunc adapts a function to a Producer.
type ProducerFunc[T any] func() (T, bool)

func (f ProducerFunc[T]) Next() (T, bool) { return f() }

type countdown struct{ next int }

// Countdown yields n-1, n-2, ..., 0. A zero count yields nothing.
func Countdown(n uint16) Producer[int] {
	return &countdown{next: int(n) - 1}
}

func (c *countdown) Next() (int, bool) {
	if c.next < 0 {
		return 0, false
	}
	v := c.next
	c.next--
	return v, true
}

type sliceProducer[T any] struct {
	items []T
}

// FromSlice yields the items in order.
func FromSlice[T any](items []T) Producer[T] {
	return &sliceProducer[T]{items: items}
}

func (s *sliceProducer[T]) Next() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	v := s.items[0]
	s.items = s.items[1:]
	return v, true
}

// Paced wraps a Producer and spaces its values by a fixed interval.
// It is not safe for concurrent use and cannot be restarted.
type Paced[T any] struct {
	inner    Producer[T]
	interval time.Duration
	clock    Clock

	started bool
	done    bool
	last    time.Time

	lastWait    time.Duration
	lastOverrun time.Duration
}

// Pace returns a Paced sequence over inner. A negative interval behaves as zero.
func Pace[T any](inner Producer[T], interval time.Duration, clk Clock) *Paced[T] {
	if interval < 0 {
		interval = 0
	}
	return &Paced[T]{inner: inner, interval: interval, clock: clk}
}

// Next returns the next value once the interval since the previous yield has
// elapsed. For the first value the interval is measured from the call itself.
// It returns false when the inner producer is exhausted or ctx is done; both
// are terminal.
func (p *Paced[T]) Next(ctx context.Context) (T, bool) {
	var zero T
	if p.done {
		return zero, false
	}
	if ctx.Err() != nil {
		p.done = true
		return zero, false
	}
	mark := p.last
	if !p.started {
		mark = p.clock.Now()
	}
	v, ok := p.inner.Next()
	if !ok {
		p.done = true
		return zero, false
	}

	elapsed := p.clock.Now().Sub(mark)
	p.lastWait, p.lastOverrun = 0, 0
	if remaining := p.interval - elapsed; remaining > 0 {
		select {
		case <-p.clock.After(remaining):
		case <-ctx.Done():
			p.done = true
			return zero, false
		}
		p.lastWait = remaining
	} else {
		p.lastOverrun = -remaining
	}
	p.started = true
	p.last = p.clock.Now()
	return v, true
}

// All exposes the paced values as an iterator.
func (p *Paced[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := p.Next(ctx)
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// LastWait is the time Next blocked before returning the latest value.
func (p *Paced[T]) LastWait() time.Duration { return p.lastWait }

// LastOverrun is how far past the interval the latest value was handed out.
func (p *Paced[T]) LastOverrun() time.Duration { return p.lastOverrun }
