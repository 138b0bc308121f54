package ws

import (
	"time"

	"github.com/alpaca-assistant/gateway/internal/session"
)

const (
	ActionStart        = "start"
	ActionStop         = "stop"
	ActionSendText     = "send_text"
	ActionInterrupt    = "interrupt"
	ActionToggleOption = "toggle_option"
)

const (
	ModeVoice = "voice"
	ModeText  = "text"
)

// Command is a client-to-server message. Every message carries an action;
// the remaining fields are action-specific. user_name may ride along on any
// command to set the session's display name.
type Command struct {
	Action   string       `json:"action"`
	Mode     string       `json:"mode,omitempty"`
	Text     string       `json:"text,omitempty"`
	Enabled  *bool        `json:"enabled,omitempty"`
	UserName string       `json:"user_name,omitempty"`
	Params   *StartParams `json:"params,omitempty"`
}

// StartParams are optional per-start overrides of the configured interaction
// defaults, expressed in seconds on the wire.
type StartParams struct {
	Timeout     *float64 `json:"timeout,omitempty"`
	PhraseLimit *float64 `json:"phrase_limit,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// overrides converts wire seconds into worker params. Absent fields stay
// zero, meaning "use the configured default".
func (p *StartParams) overrides() session.Params {
	var out session.Params
	if p == nil {
		return out
	}
	if p.Timeout != nil && *p.Timeout > 0 {
		out.ListenTimeout = secondsToDuration(*p.Timeout)
	}
	if p.PhraseLimit != nil && *p.PhraseLimit > 0 {
		out.PhraseLimit = secondsToDuration(*p.PhraseLimit)
	}
	if p.Duration != nil && *p.Duration > 0 {
		out.Duration = secondsToDuration(*p.Duration)
	}
	return out
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
