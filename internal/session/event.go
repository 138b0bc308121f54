package session

import (
	"encoding/json"
)

// EventType classifies the messages flowing from an interaction worker to the
// client.
type EventType int

const (
	EventStatus EventType = iota
	EventContentChunk
	EventBinaryChunk
	EventInfo
	EventError
)

var eventTypeNames = map[EventType]string{
	EventStatus:       "status",
	EventContentChunk: "content_chunk",
	EventBinaryChunk:  "binary_chunk",
	EventInfo:         "info",
	EventError:        "error",
}

var eventTypeFromName = map[string]EventType{
	"status":        EventStatus,
	"content_chunk": EventContentChunk,
	"binary_chunk":  EventBinaryChunk,
	"info":          EventInfo,
	"error":         EventError,
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := eventTypeFromName[s]; ok {
		*t = v
	}
	return nil
}

// Phase is the interaction state carried by status events. PhaseNone is the
// zero value so non-status events omit the field entirely.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseIdle
	PhaseBusy
	PhaseProcessing
	PhaseInterrupted
	PhaseCancelled
	PhaseError
	PhaseDisabled
)

var phaseNames = map[Phase]string{
	PhaseIdle:        "Idle",
	PhaseBusy:        "Busy",
	PhaseProcessing:  "Processing",
	PhaseInterrupted: "Interrupted",
	PhaseCancelled:   "Cancelled",
	PhaseError:       "Error",
	PhaseDisabled:    "Disabled",
}

var phaseFromName = map[string]Phase{
	"Idle":        PhaseIdle,
	"Busy":        PhaseBusy,
	"Processing":  PhaseProcessing,
	"Interrupted": PhaseInterrupted,
	"Cancelled":   PhaseCancelled,
	"Error":       PhaseError,
	"Disabled":    PhaseDisabled,
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := phaseFromName[s]; ok {
		*p = v
	}
	return nil
}

// Event is the unit of worker-to-client communication. Which fields are set
// depends on Type; the JSON shape mirrors the wire protocol directly.
type Event struct {
	Type          EventType `json:"type"`
	State         Phase     `json:"state,omitempty"`
	Text          string    `json:"text,omitempty"`
	Data          []byte    `json:"data,omitempty"`
	Encoding      string    `json:"encoding,omitempty"`
	SampleRate    int       `json:"sample_rate,omitempty"`
	Message       string    `json:"message,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	FinalResponse string    `json:"final_response,omitempty"`
}

// Terminal reports whether the event ends an interaction. A terminal event is
// the sole signal that closes the worker/relay pipeline; there is no separate
// close sentinel.
func (e Event) Terminal() bool {
	if e.Type != EventStatus {
		return false
	}
	switch e.State {
	case PhaseIdle, PhaseError, PhaseInterrupted, PhaseCancelled, PhaseDisabled:
		return true
	}
	return false
}

func StatusEvent(state Phase) Event {
	return Event{Type: EventStatus, State: state}
}

func StatusMessage(state Phase, message string) Event {
	return Event{Type: EventStatus, State: state, Message: message}
}

func ContentChunk(text string) Event {
	return Event{Type: EventContentChunk, Text: text}
}

func BinaryChunk(data []byte, encoding string, sampleRate int) Event {
	return Event{Type: EventBinaryChunk, Data: data, Encoding: encoding, SampleRate: sampleRate}
}

func InfoEvent(message string) Event {
	return Event{Type: EventInfo, Message: message}
}

// ErrorEvent builds an error event with a taxonomy reason code. Callers that
// also want a phase report alongside the error chain WithState.
func ErrorEvent(reason, message string) Event {
	return Event{Type: EventError, Reason: reason, Message: message}
}

func (e Event) WithState(state Phase) Event {
	e.State = state
	return e
}
