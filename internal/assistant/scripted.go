// Package assistant provides backend implementations of the session worker
// contract. The real capability stack (speech capture, transcription, model
// inference, synthesis) lives behind the same interfaces; Scripted is the
// in-repo stand-in used by the server's default wiring and by tests.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpaca-assistant/gateway/internal/session"
)

// Scripted is a canned assistant: each voice interaction plays a fixed
// transcript of listening/processing/response events, and text exchanges echo
// a templated reply in chunks. It honors cooperative cancellation and
// implements the Interruptible capability.
type Scripted struct {
	stepDelay  time.Duration
	sampleRate int
	encoding   string
	response   string

	interrupted atomic.Bool
}

type ScriptedOption func(*Scripted)

// WithStepDelay sets the pause between scripted events. Tests use a tiny
// value; the default approximates real pipeline pacing.
func WithStepDelay(d time.Duration) ScriptedOption {
	return func(a *Scripted) { a.stepDelay = d }
}

// WithResponse overrides the canned response text.
func WithResponse(text string) ScriptedOption {
	return func(a *Scripted) { a.response = text }
}

func NewScripted(opts ...ScriptedOption) *Scripted {
	a := &Scripted{
		stepDelay:  250 * time.Millisecond,
		sampleRate: 16000,
		encoding:   "linear16",
		response:   "I heard you. This is a scripted response from the assistant.",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunInteraction plays the scripted voice interaction. Exactly one terminal
// event is enqueued on every exit path, including panics.
func (a *Scripted) RunInteraction(ctx context.Context, q *session.Queue, p session.Params) {
	terminated := false
	emitTerminal := func(ev session.Event) {
		if !terminated {
			q.Put(ev)
			terminated = true
		}
	}
	defer func() {
		if r := recover(); r != nil {
			emitTerminal(session.StatusMessage(session.PhaseError, fmt.Sprintf("assistant failure: %v", r)))
		}
	}()

	if p.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Duration)
		defer cancel()
	}

	q.Put(session.StatusEvent(session.PhaseProcessing))
	q.Put(session.InfoEvent(fmt.Sprintf("listening for up to %s", p.ListenTimeout)))

	steps := []session.Event{
		session.InfoEvent(fmt.Sprintf("heard %s say: what can you do?", p.UserName)),
		session.ContentChunk(a.response),
	}
	for _, chunk := range a.audioChunks() {
		steps = append(steps, chunk)
	}

	for _, ev := range steps {
		select {
		case <-ctx.Done():
			emitTerminal(session.StatusMessage(session.PhaseCancelled, "interaction cancelled"))
			return
		case <-time.After(a.stepDelay):
		}
		if a.interrupted.Swap(false) {
			emitTerminal(session.StatusMessage(session.PhaseInterrupted, "output interrupted"))
			return
		}
		q.Put(ev)
	}

	emitTerminal(session.StatusEvent(session.PhaseIdle))
}

// audioChunks fabricates a few frames of silence standing in for synthesized
// speech.
func (a *Scripted) audioChunks() []session.Event {
	chunks := make([]session.Event, 0, 3)
	for i := 0; i < 3; i++ {
		frame := make([]byte, 320)
		chunks = append(chunks, session.BinaryChunk(frame, a.encoding, a.sampleRate))
	}
	return chunks
}

// Interrupt flags the current playback for interruption. Safe to call at any
// time, including when nothing is running.
func (a *Scripted) Interrupt() {
	a.interrupted.Store(true)
}

// RespondText streams a templated reply in word-sized chunks.
func (a *Scripted) RespondText(ctx context.Context, text, userName string) (<-chan string, error) {
	reply := fmt.Sprintf("%s, you said: %q. %s", userName, strings.TrimSpace(text), a.response)
	out := make(chan string)
	go func() {
		defer close(out)
		for _, word := range strings.Fields(reply) {
			select {
			case <-ctx.Done():
				return
			case out <- word + " ":
			}
		}
	}()
	return out, nil
}

// Greeting produces the opening line sent when a client connects.
func (a *Scripted) Greeting(_ context.Context, userName string) (string, error) {
	return fmt.Sprintf("Hello %s! I'm listening whenever you're ready.", userName), nil
}
