// Package scheduler paces a finite sequence of work items so that two
// consecutive items are handed out no sooner than a fixed interval apart.
//
// The interval runs from the start of one tick to the start of the next: the
// time the consumer spends on a tick is deducted from the following wait, and
// an overrun simply removes the wait instead of causing a catch-up burst.
package scheduler
