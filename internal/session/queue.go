package session

import (
	"context"
	"log"
	"sync"
)

// Queue is the unbounded FIFO mailbox between exactly one interaction worker
// and exactly one relay. Put never blocks; Take suspends until an event is
// available or the context is cancelled. A queue is created per interaction
// and never reused, so events from a previous run cannot leak into the next.
type Queue struct {
	mu      sync.Mutex
	items   []Event
	sealed  bool // a terminal event has been enqueued
	dropped int
	wake    chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Put appends ev to the queue. Enqueueing after a terminal event is a
// protocol violation by the producer; such events are counted and logged, not
// forwarded.
func (q *Queue) Put(ev Event) {
	q.mu.Lock()
	if q.sealed {
		q.dropped++
		q.mu.Unlock()
		log.Printf("event queue: dropping %s event enqueued after terminal", ev.Type)
		return
	}
	q.items = append(q.items, ev)
	if ev.Terminal() {
		q.sealed = true
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Take removes and returns the oldest event, suspending until one is
// available or ctx is cancelled.
func (q *Queue) Take(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of events awaiting delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Sealed reports whether a terminal event has been enqueued.
func (q *Queue) Sealed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sealed
}

// Dropped returns the number of post-terminal events the producer attempted
// to enqueue.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
