package protocol

import "time"

// VoiceState is broadcast whenever the coordinator's speaking or listening
// flag changes.
type VoiceState struct {
	Speaking  bool      `json:"speaking"`
	Listening bool      `json:"listening"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEvent carries the result of one completed recognition attempt.
type TranscriptEvent struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatSend is the typed-submission command from a chat surface.
type ChatSend struct {
	Text string `json:"text"`
}

// VoiceListen asks the coordinator to start a capture routed to one surface.
type VoiceListen struct {
	Target string `json:"target"` // form, chat
}

// ChatMessage mirrors one entry of the chat log.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"` // user, avatar
	Text      string    `json:"text"`
	Voice     bool      `json:"voice,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FormState reflects the form session's progress for UI rendering.
type FormState struct {
	Active       bool              `json:"active"`
	CurrentField string            `json:"current_field"`
	Values       map[string]string `json:"values"`
	Errors       map[string]string `json:"errors"`
	Timestamp    time.Time         `json:"timestamp"`
}

// RenderFrame is the one-way signal consumed by the avatar renderer.
type RenderFrame struct {
	Speaking  bool      `json:"is_speaking"`
	Blinking  bool      `json:"is_blinking"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectVoiceState      = "voice.state"
	SubjectVoiceTranscript = "voice.transcript"

	SubjectUIFormStart   = "ui.form.start"
	SubjectUIFormSubmit  = "ui.form.submit"
	SubjectUIChatOpen    = "ui.chat.open"
	SubjectUIChatClose   = "ui.chat.close"
	SubjectUIChatSend    = "ui.chat.send"
	SubjectUIVoiceListen = "ui.voice.listen"
	SubjectUIVoiceStop   = "ui.voice.stop"

	SubjectChatMessage = "chat.message"
	SubjectFormState   = "form.state"
	SubjectAvatarFrame = "avatar.frame"
)
