package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type mockEngine struct {
	transcript string
	delay      time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	count  int
}

// NewMockEngine returns an engine that reports a canned transcript after
// delay. An empty transcript yields a numbered placeholder per capture.
func NewMockEngine(transcript string, delay time.Duration) Engine {
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	return &mockEngine{transcript: transcript, delay: delay}
}

func (m *mockEngine) Listen(ctx context.Context) (<-chan Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.count++
	text := m.transcript
	if text == "" {
		text = fmt.Sprintf("[mock transcript %d]", m.count)
	}
	m.mu.Unlock()

	events := make(chan Event, 4)
	go func() {
		defer close(events)
		defer cancel()
		events <- Event{Kind: KindStarted}
		select {
		case <-ctx.Done():
		case <-time.After(m.delay):
			events <- Event{Kind: KindResult, Transcript: text, Confidence: 1}
		}
		events <- Event{Kind: KindEnded}
	}()
	return events, nil
}

func (m *mockEngine) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
