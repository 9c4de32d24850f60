package sampling

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of jobs. Push never blocks so the transport
// callback is never held up by a running command.
type Queue struct {
	mu     sync.Mutex
	items  []Job
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends job at the tail.
func (q *Queue) Push(job Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	queueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the head of the queue, blocking until a job is available or
// ctx is done.
func (q *Queue) Pop(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = Job{}
			q.items = q.items[1:]
			queueDepth.Set(float64(len(q.items)))
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
}

// Len reports the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
