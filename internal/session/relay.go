package session

import (
	"context"
	"fmt"
	"log"
)

// runRelay drains q to sink in FIFO order. It stops when it has delivered a
// terminal event, when ctx is cancelled, or when the sink rejects delivery.
// After a sink rejection there is nothing left to deliver to, so remaining
// events are abandoned with the queue.
func runRelay(ctx context.Context, q *Queue, sink Sink) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[relay] panic: %v", r)
			// Best effort: tell the client something broke. Not retried.
			_ = sink.Send(ErrorEvent(ReasonInternalError, fmt.Sprintf("relay failure: %v", r)).WithState(PhaseError))
		}
	}()

	for {
		ev, err := q.Take(ctx)
		if err != nil {
			log.Printf("[relay] cancelled: %v", err)
			return
		}
		if err := sink.Send(ev); err != nil {
			log.Printf("[relay] delivery rejected, exiting: %v", err)
			return
		}
		if ev.Terminal() {
			log.Printf("[relay] delivered terminal state %s, exiting", ev.State)
			return
		}
	}
}
