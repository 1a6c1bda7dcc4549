package recognition

import (
	"context"
	"fmt"

	"github.com/aurelabs/aura-core/internal/config"
)

// Kind discriminates recognition lifecycle events.
type Kind int

const (
	KindStarted Kind = iota
	KindResult
	KindError
	KindEnded
)

// Event is one lifecycle signal of a single-utterance capture. A capture
// emits Started, then at most one Result, then Ended; Error may appear in
// place of Result. The event channel is closed after Ended.
type Event struct {
	Kind       Kind
	Transcript string
	Confidence float64
	Err        error
}

// Engine abstracts a speech-to-text backend configured for one-shot,
// final-results-only capture.
type Engine interface {
	// Listen begins a single capture and returns its event stream.
	Listen(ctx context.Context) (<-chan Event, error)
	// Stop aborts the capture in flight, if any. Best effort.
	Stop()
}

// NewEngine builds the backend selected by config. A disabled capability
// yields a nil engine; callers must treat nil as "recognition unavailable".
func NewEngine(cfg config.RecognitionConfig) (Engine, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "mock":
		return NewMockEngine("", 0), nil
	case "exec":
		return NewExecEngine(cfg.Command)
	default:
		return nil, fmt.Errorf("unsupported recognition mode %q", cfg.Mode)
	}
}
