package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alpaca-assistant/gateway/internal/session"
)

func drain(t *testing.T, q *session.Queue) []session.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out []session.Event
	for {
		ev, err := q.Take(ctx)
		if err != nil {
			t.Fatalf("queue never produced a terminal event: %v", err)
		}
		out = append(out, ev)
		if ev.Terminal() {
			return out
		}
	}
}

func testParams() session.Params {
	return session.Params{
		ListenTimeout: 10 * time.Second,
		PhraseLimit:   10 * time.Second,
		UserName:      "Ada",
	}
}

func TestRunInteractionCompletesWithIdle(t *testing.T) {
	a := NewScripted(WithStepDelay(time.Millisecond), WithResponse("scripted reply"))
	q := session.NewQueue()

	a.RunInteraction(context.Background(), q, testParams())
	events := drain(t, q)

	if events[0].State != session.PhaseProcessing {
		t.Errorf("first event = %+v, want Processing status", events[0])
	}
	last := events[len(events)-1]
	if last.State != session.PhaseIdle {
		t.Errorf("terminal = %+v, want Idle", last)
	}

	var sawContent, sawBinary bool
	for _, ev := range events {
		switch ev.Type {
		case session.EventContentChunk:
			sawContent = true
			if ev.Text != "scripted reply" {
				t.Errorf("content = %q, want scripted reply", ev.Text)
			}
		case session.EventBinaryChunk:
			sawBinary = true
			if ev.Encoding == "" || ev.SampleRate == 0 {
				t.Errorf("binary chunk missing metadata: %+v", ev)
			}
		}
	}
	if !sawContent || !sawBinary {
		t.Errorf("missing content (%v) or binary (%v) chunks", sawContent, sawBinary)
	}

	if got := q.Dropped(); got != 0 {
		t.Errorf("scripted runner enqueued %d events after terminal", got)
	}
}

func TestRunInteractionHonorsCancellation(t *testing.T) {
	a := NewScripted(WithStepDelay(50 * time.Millisecond))
	q := session.NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.RunInteraction(ctx, q, testParams())
	events := drain(t, q)

	last := events[len(events)-1]
	if last.State != session.PhaseCancelled {
		t.Errorf("terminal = %+v, want Cancelled", last)
	}
}

func TestRunInteractionHonorsDurationBound(t *testing.T) {
	a := NewScripted(WithStepDelay(50 * time.Millisecond))
	q := session.NewQueue()

	p := testParams()
	p.Duration = 10 * time.Millisecond
	a.RunInteraction(context.Background(), q, p)

	events := drain(t, q)
	last := events[len(events)-1]
	if last.State != session.PhaseCancelled {
		t.Errorf("terminal = %+v, want Cancelled after duration bound", last)
	}
}

func TestInterruptEndsWithInterruptedTerminal(t *testing.T) {
	a := NewScripted(WithStepDelay(time.Millisecond))
	q := session.NewQueue()

	a.Interrupt()
	a.RunInteraction(context.Background(), q, testParams())

	events := drain(t, q)
	last := events[len(events)-1]
	if last.State != session.PhaseInterrupted {
		t.Errorf("terminal = %+v, want Interrupted", last)
	}
}

func TestRespondTextStreamsChunks(t *testing.T) {
	a := NewScripted(WithResponse("All good."))

	chunks, err := a.RespondText(context.Background(), "how are you?", "Ada")
	if err != nil {
		t.Fatalf("RespondText: %v", err)
	}

	var full strings.Builder
	for chunk := range chunks {
		full.WriteString(chunk)
	}

	got := full.String()
	if !strings.Contains(got, "Ada") {
		t.Errorf("response %q does not address the user", got)
	}
	if !strings.Contains(got, "how are you?") {
		t.Errorf("response %q does not echo the input", got)
	}
	if !strings.Contains(got, "All good.") {
		t.Errorf("response %q missing configured reply", got)
	}
}

func TestGreetingMentionsUser(t *testing.T) {
	a := NewScripted()
	greeting, err := a.Greeting(context.Background(), "Ada")
	if err != nil {
		t.Fatalf("Greeting: %v", err)
	}
	if !strings.Contains(greeting, "Ada") {
		t.Errorf("greeting %q does not mention the user", greeting)
	}
}
