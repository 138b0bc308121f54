package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the session's interaction state.
type State int

const (
	StateIdle State = iota
	StateBusy
	StateShuttingDown
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateBusy:         "busy",
	StateShuttingDown: "shutting_down",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

const defaultGracePeriod = 5 * time.Second

// Options configure a session at construction.
type Options struct {
	// Defaults are the interaction parameters used when a start command does
	// not override them.
	Defaults Params
	// GracePeriod bounds how long a cancelled worker may run before it is
	// abandoned and a synthetic terminal event is injected.
	GracePeriod time.Duration
}

// Session owns the state and resources of one client connection: at most one
// worker/relay pair at a time, the current event queue, and the session-scoped
// flags. All Handle* methods are called from a single command loop, so they
// never run concurrently with each other; the mutex exists to serialize them
// against teardown and interaction-completion callbacks.
type Session struct {
	ID string

	mu            sync.Mutex
	state         State
	userName      string
	optionEnabled bool
	torn          bool

	queue        *Queue
	cancelWorker context.CancelFunc
	cancelRelay  context.CancelFunc
	workerDone   chan struct{}
	relayDone    chan struct{}

	ctx         context.Context
	runner      Runner
	responder   Responder
	greeter     Greeter
	interrupter Interruptible
	sink        Sink
	defaults    Params
	grace       time.Duration
}

// New builds a session for one connection. ctx is the connection-scoped base
// context; runner may be nil when the backend failed to initialize, in which
// case commands answer with BackendUnavailable. Optional capabilities
// (Responder, Greeter, Interruptible) are resolved here, once.
func New(ctx context.Context, runner Runner, sink Sink, opts Options) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		ctx:      ctx,
		runner:   runner,
		sink:     sink,
		defaults: opts.Defaults,
		grace:    opts.GracePeriod,
		userName: "User",
	}
	if s.grace <= 0 {
		s.grace = defaultGracePeriod
	}
	if runner != nil {
		if v, ok := runner.(Responder); ok {
			s.responder = v
		}
		if v, ok := runner.(Greeter); ok {
			s.greeter = v
		}
		if v, ok := runner.(Interruptible); ok {
			s.interrupter = v
		}
	}
	return s
}

// State returns the current interaction state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetUserName stores the client-supplied display name used by subsequent
// interactions. Blank names are ignored.
func (s *Session) SetUserName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	s.userName = name
	s.mu.Unlock()
}

// GreetClient asks the backend for an opening line and sends it as a content
// chunk. Generation failure is returned to the caller; delivery failure is
// not (the connection is gone either way).
func (s *Session) GreetClient(ctx context.Context) error {
	if s.greeter == nil {
		return nil
	}
	s.mu.Lock()
	name := s.userName
	s.mu.Unlock()

	greeting, err := s.greeter.Greeting(ctx, name)
	if err != nil {
		return err
	}
	s.send(ContentChunk(greeting))
	return nil
}

// HandleStart begins a new interaction unless one is already active. The
// queue, relay, and worker are created together under the lock so no other
// command can interleave between queue creation and the state update.
func (s *Session) HandleStart(overrides Params) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.reapFinishedLocked()
	if s.runner == nil {
		s.mu.Unlock()
		s.send(ErrorEvent(ReasonBackendUnavailable, "assistant backend not initialized").WithState(PhaseError))
		return
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		s.send(ErrorEvent(ReasonBusy, "an interaction is already in progress").WithState(PhaseBusy))
		return
	}

	p := s.mergedParamsLocked(overrides)

	q := NewQueue()
	workerCtx, cancelWorker := context.WithCancel(s.ctx)
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	relayDone := make(chan struct{})

	s.queue = q
	s.cancelWorker = cancelWorker
	s.cancelRelay = cancelRelay
	s.workerDone = workerDone
	s.relayDone = relayDone
	s.state = StateBusy
	runner := s.runner
	s.mu.Unlock()

	log.Printf("session %s: starting interaction (timeout=%s phrase_limit=%s duration=%s)",
		s.ID, p.ListenTimeout, p.PhraseLimit, p.Duration)

	go func() {
		defer close(relayDone)
		runRelay(relayCtx, q, s.sink)
	}()
	go func() {
		defer close(workerDone)
		runner.RunInteraction(workerCtx, q, p)
	}()
	go s.ensureTerminal(q, workerDone)
	go s.watchCompletion(q, workerDone, relayDone)
}

// mergedParamsLocked overlays wire-supplied overrides on the configured
// defaults and stamps in the session-scoped fields.
func (s *Session) mergedParamsLocked(overrides Params) Params {
	p := s.defaults
	if overrides.ListenTimeout > 0 {
		p.ListenTimeout = overrides.ListenTimeout
	}
	if overrides.PhraseLimit > 0 {
		p.PhraseLimit = overrides.PhraseLimit
	}
	if overrides.Duration > 0 {
		p.Duration = overrides.Duration
	}
	p.UserName = s.userName
	p.OptionEnabled = s.optionEnabled
	return p
}

// watchCompletion resets the session to idle once the worker and relay of a
// naturally-finished interaction are both done. The queue pointer identifies
// the interaction: if a stop or teardown already moved the session on, state
// is left alone.
func (s *Session) watchCompletion(q *Queue, workerDone, relayDone chan struct{}) {
	<-workerDone
	<-relayDone

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != q {
		return
	}
	s.clearInteractionLocked()
	if !s.torn {
		s.state = StateIdle
	}
	if n := q.Dropped(); n > 0 {
		log.Printf("session %s: worker enqueued %d event(s) after terminal", s.ID, n)
	}
	log.Printf("session %s: interaction complete", s.ID)
}

// HandleStop cancels the active interaction, if any. Cancellation is
// cooperative: the worker handle is cleared immediately, but the relay keeps
// draining until it sees the terminal event the worker emits on cancellation.
// If the worker blows the grace period, a synthetic terminal event is
// injected so the relay and client are not left hanging. Stopping an idle
// session is a no-op, reported as such.
func (s *Session) HandleStop() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.reapFinishedLocked()
	if s.state != StateBusy || s.cancelWorker == nil {
		s.mu.Unlock()
		s.send(StatusMessage(PhaseIdle, "stop received, nothing active to stop"))
		return
	}

	cancel := s.cancelWorker
	q := s.queue
	workerDone := s.workerDone
	s.clearInteractionLocked()
	s.state = StateIdle
	s.mu.Unlock()

	log.Printf("session %s: stop requested, cancelling worker", s.ID)
	cancel()
	go s.abandonAfterGrace(q, workerDone)
	s.send(InfoEvent("stop processed, interaction cancelled"))
}

// abandonAfterGrace waits for a cancelled worker to wind down. Past the grace
// period the handle is abandoned and a synthetic terminal event unblocks the
// relay. If the worker already sealed the queue with its own terminal event,
// the injection is dropped there. A worker that exits before the deadline is
// ensureTerminal's responsibility.
func (s *Session) abandonAfterGrace(q *Queue, workerDone chan struct{}) {
	select {
	case <-workerDone:
	case <-time.After(s.grace):
		log.Printf("session %s: worker unresponsive %s after cancellation, abandoning", s.ID, s.grace)
		q.Put(Event{
			Type:    EventStatus,
			State:   PhaseError,
			Reason:  ReasonWorkerUnresponsive,
			Message: "worker did not stop within the grace period",
		})
	}
}

// ensureTerminal backstops the worker contract: every interaction must end
// with a terminal event in its queue. If the worker exits without sealing the
// queue the relay would block in Take forever and the client would never see
// the interaction end, so a synthetic terminal is injected on its behalf.
// Armed for every interaction, whether or not a stop was issued.
func (s *Session) ensureTerminal(q *Queue, workerDone chan struct{}) {
	<-workerDone
	if q.Sealed() {
		return
	}
	log.Printf("session %s: worker exited without a terminal event, injecting one", s.ID)
	q.Put(Event{
		Type:    EventStatus,
		State:   PhaseError,
		Reason:  ReasonWorkerUnresponsive,
		Message: "worker exited without reporting a final state",
	})
}

// HandleSendText runs the synchronous text exchange: the response streams
// straight to the sink, bypassing the queue/relay path. The session is busy
// for the duration, so a concurrent start is refused.
func (s *Session) HandleSendText(text string) {
	if strings.TrimSpace(text) == "" {
		s.send(ErrorEvent(ReasonEmptyInput, "received empty text for send_text").WithState(PhaseIdle))
		return
	}

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.reapFinishedLocked()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.send(ErrorEvent(ReasonBusy, "cannot send text while an interaction is active").WithState(PhaseBusy))
		return
	}
	if s.responder == nil {
		s.mu.Unlock()
		s.send(ErrorEvent(ReasonBackendUnavailable, "assistant backend does not handle text").WithState(PhaseError))
		return
	}
	s.state = StateBusy
	name := s.userName
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if !s.torn && s.state == StateBusy {
			s.state = StateIdle
		}
		s.mu.Unlock()
	}()

	s.send(StatusEvent(PhaseProcessing))

	chunks, err := s.responder.RespondText(s.ctx, text, name)
	if err != nil {
		log.Printf("session %s: text interaction failed: %v", s.ID, err)
		s.send(ErrorEvent(ReasonInternalError, "error processing text: "+err.Error()).WithState(PhaseError))
		s.send(StatusEvent(PhaseIdle))
		return
	}

	var full strings.Builder
	for chunk := range chunks {
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		s.send(ContentChunk(chunk))
	}

	ev := StatusEvent(PhaseIdle)
	ev.FinalResponse = full.String()
	s.send(ev)
}

// HandleInterrupt forwards a best-effort output-interrupt signal. It never
// touches interaction state and always acknowledges at the protocol level.
func (s *Session) HandleInterrupt() {
	if s.interrupter == nil {
		s.send(InfoEvent("interrupt received, but no interruptible output is available"))
		return
	}
	s.interrupter.Interrupt()
	s.send(InfoEvent("interrupt signal sent to output handler"))
}

// HandleToggleOption sets the session-scoped option flag picked up by the
// next interaction's parameters.
func (s *Session) HandleToggleOption(enabled bool) {
	s.mu.Lock()
	s.optionEnabled = enabled
	s.mu.Unlock()
	if enabled {
		s.send(InfoEvent("option enabled"))
	} else {
		s.send(InfoEvent("option disabled"))
	}
}

// Teardown cancels any active worker and relay and waits out the grace period
// for them to finish. Idempotent; invoked on disconnect, on fatal protocol
// errors, and at session end. A torn-down session accepts no further commands
// and stays in StateShuttingDown.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	s.state = StateShuttingDown
	cancelWorker := s.cancelWorker
	cancelRelay := s.cancelRelay
	workerDone := s.workerDone
	relayDone := s.relayDone
	s.clearInteractionLocked()
	s.mu.Unlock()

	if cancelWorker != nil {
		cancelWorker()
	}
	if cancelRelay != nil {
		cancelRelay()
	}

	deadline := time.After(s.grace)
	for name, done := range map[string]chan struct{}{"worker": workerDone, "relay": relayDone} {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-deadline:
			log.Printf("session %s: %s did not stop within grace period, abandoning", s.ID, name)
		}
	}

	log.Printf("session %s: teardown complete", s.ID)
}

// reapFinishedLocked resets a busy session whose worker and relay have both
// already finished but whose completion watcher has not run yet. Keeps
// commands issued right after a terminal event from observing a stale Busy
// state. The caller holds s.mu.
func (s *Session) reapFinishedLocked() {
	if s.state != StateBusy || s.workerDone == nil || s.relayDone == nil {
		return
	}
	select {
	case <-s.workerDone:
	default:
		return
	}
	select {
	case <-s.relayDone:
	default:
		return
	}
	s.clearInteractionLocked()
	s.state = StateIdle
}

// clearInteractionLocked drops all handles of the current interaction. The
// caller holds s.mu.
func (s *Session) clearInteractionLocked() {
	s.queue = nil
	s.cancelWorker = nil
	s.cancelRelay = nil
	s.workerDone = nil
	s.relayDone = nil
}

func (s *Session) send(ev Event) {
	if err := s.sink.Send(ev); err != nil {
		log.Printf("session %s: dropping %s event, send failed: %v", s.ID, ev.Type, err)
	}
}
