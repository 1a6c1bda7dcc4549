package synthesis

import (
	"context"
	"sync"
	"time"
)

type mockEngine struct {
	perChar time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewMockEngine returns an engine that pretends to speak, taking perChar per
// input character.
func NewMockEngine(perChar time.Duration) Engine {
	if perChar <= 0 {
		perChar = time.Millisecond
	}
	return &mockEngine{perChar: perChar}
}

func (m *mockEngine) Speak(ctx context.Context, utt Utterance) (<-chan Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	duration := time.Duration(len(utt.Text)) * m.perChar

	events := make(chan Event, 2)
	go func() {
		defer close(events)
		defer cancel()
		events <- Event{Kind: KindStarted}
		select {
		case <-ctx.Done():
			events <- Event{Kind: KindError, Err: ctx.Err()}
		case <-time.After(duration):
			events <- Event{Kind: KindEnded}
		}
	}()
	return events, nil
}

func (m *mockEngine) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *mockEngine) Voices() []Voice {
	return []Voice{
		{ID: "aura-en-in", Name: "Aura English (India)", Lang: "en-IN"},
		{ID: "aura-en-us", Name: "Aura English (US)", Lang: "en-US"},
		{ID: "aura-en-gb", Name: "Aura English (UK)", Lang: "en-GB"},
		{ID: "aura-hi-in", Name: "Aura Hindi", Lang: "hi-IN"},
	}
}
