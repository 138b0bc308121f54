package session

import (
	"context"
	"time"
)

// Params are the knobs an interaction worker receives at start. Zero values
// mean "backend default"; Duration 0 means unbounded.
type Params struct {
	ListenTimeout time.Duration
	PhraseLimit   time.Duration
	Duration      time.Duration
	UserName      string
	OptionEnabled bool
}

// Runner is the interaction worker contract. RunInteraction must push events
// to q as it progresses and must enqueue exactly one terminal event as its
// last action on every exit path: normal completion, cancellation via ctx, or
// internal error. The relay's termination depends on that guarantee; a runner
// that returns without a terminal event leaves the client waiting until the
// grace-period abandonment path kicks in.
//
// Cancellation is cooperative: the runner must observe ctx within a bounded
// interval and, on honoring it, finish with a Cancelled or Interrupted
// terminal event.
type Runner interface {
	RunInteraction(ctx context.Context, q *Queue, p Params)
}

// Responder handles the synchronous text exchange path. It returns a channel
// of response chunks that is closed when the response is complete. Errors
// detected after streaming begins end the stream early.
type Responder interface {
	RespondText(ctx context.Context, text, userName string) (<-chan string, error)
}

// Greeter produces the greeting sent when a client connects.
type Greeter interface {
	Greeting(ctx context.Context, userName string) (string, error)
}

// Interruptible is an optional backend capability: interrupt whatever output
// is currently playing without ending the interaction. Resolved once at
// session construction, not probed per command.
type Interruptible interface {
	Interrupt()
}

// Sink delivers events to the connected client. Send blocks while delivery is
// in flight and returns ErrTransportClosed once the connection is gone.
type Sink interface {
	Send(Event) error
}
