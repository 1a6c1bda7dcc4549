package recognition

import (
	"context"
	"testing"
	"time"

	"github.com/aurelabs/aura-core/internal/config"
)

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("event stream did not close, have %d events", len(out))
		}
	}
}

func TestMockEngineEmitsResult(t *testing.T) {
	engine := NewMockEngine("turn on the lights", 5*time.Millisecond)
	events, err := engine.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	got := drain(t, events)
	if len(got) != 3 {
		t.Fatalf("expected started/result/ended, got %v", got)
	}
	if got[0].Kind != KindStarted || got[2].Kind != KindEnded {
		t.Fatalf("unexpected framing: %v", got)
	}
	if got[1].Kind != KindResult || got[1].Transcript != "turn on the lights" {
		t.Fatalf("unexpected result: %+v", got[1])
	}
}

func TestMockEnginePlaceholderNumbering(t *testing.T) {
	engine := NewMockEngine("", time.Millisecond)

	for i := 1; i <= 2; i++ {
		events, err := engine.Listen(context.Background())
		if err != nil {
			t.Fatalf("listen %d: %v", i, err)
		}
		got := drain(t, events)
		if len(got) != 3 || got[1].Transcript == "" {
			t.Fatalf("capture %d missing placeholder: %v", i, got)
		}
		if i == 2 && got[1].Transcript == "[mock transcript 1]" {
			t.Fatal("placeholder did not advance between captures")
		}
	}
}

func TestMockEngineStopSkipsResult(t *testing.T) {
	engine := NewMockEngine("late", time.Second)
	events, err := engine.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	engine.Stop()

	for _, ev := range drain(t, events) {
		if ev.Kind == KindResult {
			t.Fatal("result emitted after stop")
		}
	}
}

func TestNewEngineModes(t *testing.T) {
	cfg := config.RecognitionConfig{Enabled: false}
	engine, err := NewEngine(cfg)
	if err != nil || engine != nil {
		t.Fatalf("disabled config should yield no engine, got %v, %v", engine, err)
	}

	cfg = config.RecognitionConfig{Enabled: true, Mode: "mock"}
	engine, err = NewEngine(cfg)
	if err != nil || engine == nil {
		t.Fatalf("mock mode should yield an engine, got %v, %v", engine, err)
	}

	cfg = config.RecognitionConfig{Enabled: true, Mode: "exec", Command: "aura-mock-engine recognize"}
	engine, err = NewEngine(cfg)
	if err != nil || engine == nil {
		t.Fatalf("exec mode should yield an engine, got %v, %v", engine, err)
	}

	cfg = config.RecognitionConfig{Enabled: true, Mode: "grpc"}
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("unsupported mode should error")
	}
}
