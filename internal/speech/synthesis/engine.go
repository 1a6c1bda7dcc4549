package synthesis

import (
	"context"
	"fmt"

	"github.com/aurelabs/aura-core/internal/config"
)

// Utterance is one synthesis request, discarded once it ends or errors.
type Utterance struct {
	Text    string
	Lang    string
	Rate    float64
	Pitch   float64
	Volume  float64
	VoiceID string
}

// Voice describes one installed synthesis voice.
type Voice struct {
	ID   string
	Name string
	Lang string
}

// Kind discriminates synthesis lifecycle events.
type Kind int

const (
	KindStarted Kind = iota
	KindError
	KindEnded
)

// Event is one lifecycle signal of an in-flight utterance. The stream emits
// Started, then Ended or Error, and is closed afterwards.
type Event struct {
	Kind Kind
	Err  error
}

// Engine abstracts a text-to-speech backend.
type Engine interface {
	// Speak begins synthesizing one utterance and returns its event stream.
	Speak(ctx context.Context, utt Utterance) (<-chan Event, error)
	// Cancel aborts the utterance in flight, if any. Best effort.
	Cancel()
	// Voices enumerates installed voices; may be empty.
	Voices() []Voice
}

// NewEngine builds the backend selected by config. A disabled capability
// yields a nil engine; callers must treat nil as "synthesis unavailable".
func NewEngine(cfg config.SynthesisConfig) (Engine, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "mock":
		return NewMockEngine(0), nil
	case "exec":
		return NewExecEngine(cfg.Command)
	default:
		return nil, fmt.Errorf("unsupported synthesis mode %q", cfg.Mode)
	}
}
