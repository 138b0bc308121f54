package session

import "errors"

// Reason codes attached to error events sent to the client.
const (
	ReasonBusy               = "Busy"
	ReasonConflict           = "Conflict"
	ReasonEmptyInput         = "EmptyInput"
	ReasonUnknownAction      = "UnknownAction"
	ReasonBackendUnavailable = "BackendUnavailable"
	ReasonWorkerUnresponsive = "WorkerUnresponsive"
	ReasonInternalError      = "InternalError"
)

// ErrTransportClosed is returned by a Sink once the client connection is gone.
// The relay treats it as final: no retry, no further draining.
var ErrTransportClosed = errors.New("transport closed")
