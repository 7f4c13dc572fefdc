package dispatcher

import (
	"github.com/yoockh/oscesim/internal/engine"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/utils"
	"github.com/yoockh/oscesim/internal/voice"
)

// Outbound event types.
const (
	EventThinkingStarted = "thinking-started"
	EventTextIncrement   = "text-increment"
	EventAudioChunk      = "audio-chunk"
	EventTextFinal       = "text-final"
	EventStateUpdate     = "state-update"
	EventThinkingStopped = "thinking-stopped"
	EventError           = "error"
	EventSessionJoined   = "session-joined"
	EventResetComplete   = "reset-complete"
)

// VoiceInfo describes how one audio chunk was produced.
type VoiceInfo struct {
	VoiceID     string       `json:"voice_id"`
	DisplayName string       `json:"display_name"`
	Speaker     string       `json:"speaker"`
	Params      voice.Params `json:"params"`
	Tags        []string     `json:"tags,omitempty"`
	CacheHit    bool         `json:"cache_hit"`
	DurationMS  int64        `json:"duration_ms,omitempty"`
}

// Event is one frame on the client channel. Only the fields of its Type are set.
// Keys are snake_case at every depth, like the REST payloads.
type Event struct {
	Type      string `json:"type"`
	TurnID    string `json:"turn_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Text  string     `json:"text,omitempty"`
	Index int        `json:"index,omitempty"`
	Audio []byte     `json:"audio,omitempty"`
	Voice *VoiceInfo `json:"voice_info,omitempty"`

	FullText   string                   `json:"full_text,omitempty"`
	Meta       *engine.TurnMeta         `json:"meta,omitempty"`
	State      *models.StateSnapshot    `json:"state,omitempty"`
	Transcript []models.TranscriptEntry `json:"transcript,omitempty"`

	Code    utils.Code `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Emitter delivers events to one client. Implementations must be safe for
// concurrent use; text and audio are emitted from different goroutines.
type Emitter interface {
	Emit(ev Event) error
}

type EmitterFunc func(ev Event) error

func (f EmitterFunc) Emit(ev Event) error { return f(ev) }

// ErrorEvent renders err with its safe message only.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Code: utils.CodeOf(err), Message: utils.SafeMessage(err)}
}
