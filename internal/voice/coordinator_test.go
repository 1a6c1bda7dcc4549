package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aurelabs/aura-core/internal/config"
	"github.com/aurelabs/aura-core/internal/speech/recognition"
	"github.com/aurelabs/aura-core/internal/speech/synthesis"
)

var errBackendGone = errors.New("synthesis backend gone")

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeRecognizer hands out one scripted event stream per Listen call.
type fakeRecognizer struct {
	mu      sync.Mutex
	streams []chan recognition.Event
	stops   int
}

func (f *fakeRecognizer) Listen(_ context.Context) (<-chan recognition.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan recognition.Event, 8)
	f.streams = append(f.streams, ch)
	return ch, nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRecognizer) listens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeRecognizer) stream(i int) chan recognition.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func (f *fakeRecognizer) started(i int) {
	f.stream(i) <- recognition.Event{Kind: recognition.KindStarted}
}

func (f *fakeRecognizer) result(i int, text string) {
	f.stream(i) <- recognition.Event{Kind: recognition.KindResult, Transcript: text, Confidence: 1}
}

func (f *fakeRecognizer) ended(i int) {
	ch := f.stream(i)
	ch <- recognition.Event{Kind: recognition.KindEnded}
	close(ch)
}

func (f *fakeRecognizer) failed(i int, err error) {
	ch := f.stream(i)
	ch <- recognition.Event{Kind: recognition.KindError, Err: err}
	ch <- recognition.Event{Kind: recognition.KindEnded}
	close(ch)
}

// fakeSynth hands out one scripted event stream per Speak call. Calls past
// failAfter (when set) return an error instead of a stream.
type fakeSynth struct {
	mu        sync.Mutex
	streams   []chan synthesis.Event
	texts     []string
	cancels   int
	failAfter int
}

func (f *fakeSynth) Speak(_ context.Context, utt synthesis.Utterance) (<-chan synthesis.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && len(f.streams) >= f.failAfter {
		return nil, errBackendGone
	}
	ch := make(chan synthesis.Event, 4)
	f.streams = append(f.streams, ch)
	f.texts = append(f.texts, utt.Text)
	return ch, nil
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeSynth) Voices() []synthesis.Voice {
	return []synthesis.Voice{
		{ID: "test-en-us", Name: "US", Lang: "en-US"},
		{ID: "test-en-in", Name: "India", Lang: "en-IN"},
	}
}

func (f *fakeSynth) speaks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeSynth) stream(i int) chan synthesis.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func (f *fakeSynth) started(i int) {
	f.stream(i) <- synthesis.Event{Kind: synthesis.KindStarted}
}

func (f *fakeSynth) ended(i int) {
	ch := f.stream(i)
	ch <- synthesis.Event{Kind: synthesis.KindEnded}
	close(ch)
}

func (f *fakeSynth) failed(i int, err error) {
	ch := f.stream(i)
	ch <- synthesis.Event{Kind: synthesis.KindError, Err: err}
	close(ch)
}

func newCoordinator(t *testing.T, recog recognition.Engine, synth synthesis.Engine) *Coordinator {
	t.Helper()
	c := New(context.Background(), config.Default().Voice, recog, synth, nil, newLogger())
	t.Cleanup(c.Close)
	return c
}

func TestListenDeliversTranscriptOnce(t *testing.T) {
	recog := &fakeRecognizer{}
	synth := &fakeSynth{}
	c := newCoordinator(t, recog, synth)

	got := make(chan string, 2)
	c.StartListening(func(transcript string) { got <- transcript })

	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)

	recog.result(0, "hello world")
	select {
	case transcript := <-got:
		if transcript != "hello world" {
			t.Fatalf("unexpected transcript %q", transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transcript not delivered")
	}
	waitFor(t, "listening reset", func() bool { return !c.IsListening() })
	recog.ended(0)

	select {
	case transcript := <-got:
		t.Fatalf("transcript delivered twice: %q", transcript)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartListeningRejectedWhileListening(t *testing.T) {
	recog := &fakeRecognizer{}
	c := newCoordinator(t, recog, &fakeSynth{})

	gotA := make(chan string, 1)
	gotB := make(chan string, 1)
	c.StartListening(func(transcript string) { gotA <- transcript })
	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)

	c.StartListening(func(transcript string) { gotB <- transcript })
	if recog.listens() != 1 {
		t.Fatalf("engine restarted: %d listens", recog.listens())
	}

	recog.result(0, "for the first handler")
	recog.ended(0)
	select {
	case <-gotA:
	case <-time.After(2 * time.Second):
		t.Fatal("original handler not invoked")
	}
	select {
	case <-gotB:
		t.Fatal("rejected handler received transcript")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartListeningRejectedWhileSpeaking(t *testing.T) {
	recog := &fakeRecognizer{}
	synth := &fakeSynth{}
	c := newCoordinator(t, recog, synth)

	c.Speak("hold on")
	synth.started(0)
	waitFor(t, "speaking flag", c.IsSpeaking)

	c.StartListening(func(string) {})
	if recog.listens() != 0 {
		t.Fatal("listening started while speaking")
	}
	if c.IsListening() && c.IsSpeaking() {
		t.Fatal("both flags set")
	}

	synth.ended(0)
	waitFor(t, "speaking reset", func() bool { return !c.IsSpeaking() })

	c.StartListening(func(string) {})
	if recog.listens() != 1 {
		t.Fatal("listening not accepted after speaking ended")
	}
	recog.started(0)
	recog.ended(0)
}

func TestSpeakRejectedWhileListening(t *testing.T) {
	recog := &fakeRecognizer{}
	synth := &fakeSynth{}
	c := newCoordinator(t, recog, synth)

	c.StartListening(func(string) {})
	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)

	c.Speak("should be dropped")
	if synth.speaks() != 0 {
		t.Fatal("utterance started while listening")
	}
	recog.ended(0)
}

func TestRegisterHandlerReplaces(t *testing.T) {
	recog := &fakeRecognizer{}
	c := newCoordinator(t, recog, &fakeSynth{})

	gotA := make(chan string, 1)
	gotB := make(chan string, 1)
	c.StartListening(func(transcript string) { gotA <- transcript })
	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)

	c.RegisterHandler(func(transcript string) { gotB <- transcript })
	recog.result(0, "routed")
	recog.ended(0)

	select {
	case <-gotB:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement handler not invoked")
	}
	select {
	case <-gotA:
		t.Fatal("replaced handler still invoked")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopListeningIdempotent(t *testing.T) {
	recog := &fakeRecognizer{}
	c := newCoordinator(t, recog, &fakeSynth{})

	c.StopListening()
	if recog.stops != 0 {
		t.Fatal("engine stopped while idle")
	}

	got := make(chan string, 1)
	c.StartListening(func(transcript string) { got <- transcript })
	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)

	c.StopListening()
	if !c.Idle() {
		t.Fatal("coordinator not idle after stop")
	}
	c.StopListening()

	// A late result from the halted capture is not delivered.
	recog.result(0, "too late")
	recog.ended(0)
	select {
	case <-got:
		t.Fatal("handler invoked after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSpeakPreemptsInFlightUtterance(t *testing.T) {
	synth := &fakeSynth{}
	c := newCoordinator(t, nil, synth)

	c.Speak("first")
	synth.started(0)
	waitFor(t, "speaking flag", c.IsSpeaking)

	c.Speak("second")
	if synth.cancels == 0 {
		t.Fatal("in-flight utterance not cancelled")
	}
	if synth.speaks() != 2 {
		t.Fatalf("expected 2 utterances, got %d", synth.speaks())
	}

	// The preempted stream settling must not clear the new utterance.
	synth.failed(0, context.Canceled)
	synth.started(1)
	waitFor(t, "speaking flag for replacement", c.IsSpeaking)
	synth.ended(1)
	waitFor(t, "speaking reset", func() bool { return !c.IsSpeaking() })
}

func TestFailedPreemptingSpeakClearsSpeaking(t *testing.T) {
	recog := &fakeRecognizer{}
	synth := &fakeSynth{failAfter: 1}
	c := newCoordinator(t, recog, synth)

	c.Speak("first")
	synth.started(0)
	waitFor(t, "speaking flag", c.IsSpeaking)

	// The preempting call cancels the confirmed utterance, then fails to
	// start its replacement.
	c.Speak("second")
	synth.failed(0, context.Canceled)

	waitFor(t, "speaking reset", func() bool { return !c.IsSpeaking() })
	waitFor(t, "idle", c.Idle)

	c.StartListening(func(string) {})
	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)
	if c.IsSpeaking() {
		t.Fatal("speaking flag stuck after failed preemption")
	}
	recog.ended(0)
}

func TestSpeakIgnoresEmptyText(t *testing.T) {
	synth := &fakeSynth{}
	c := newCoordinator(t, nil, synth)

	c.Speak("")
	if synth.speaks() != 0 {
		t.Fatal("empty utterance synthesized")
	}
}

func TestMissingCapabilitiesDegrade(t *testing.T) {
	c := newCoordinator(t, nil, nil)

	c.Speak("nobody is listening")
	c.StartListening(func(string) {})
	c.StopListening()

	if c.IsSpeaking() || c.IsListening() {
		t.Fatal("flags set without engines")
	}
}

func TestRecognitionErrorResetsListening(t *testing.T) {
	recog := &fakeRecognizer{}
	c := newCoordinator(t, recog, &fakeSynth{})

	c.StartListening(func(string) {})
	recog.started(0)
	waitFor(t, "listening flag", c.IsListening)

	recog.failed(0, context.DeadlineExceeded)
	waitFor(t, "listening reset", func() bool { return !c.IsListening() })
	waitFor(t, "idle", c.Idle)

	// Recovered: a fresh capture is accepted.
	c.StartListening(func(string) {})
	if recog.listens() != 2 {
		t.Fatalf("expected second listen, got %d", recog.listens())
	}
	recog.started(1)
	recog.ended(1)
}

func TestVoiceChosenByLocale(t *testing.T) {
	synth := &fakeSynth{}
	cfg := config.Default().Voice
	cfg.VoiceLocale = "en-IN"
	c := New(context.Background(), cfg, nil, synth, nil, newLogger())
	t.Cleanup(c.Close)

	if c.voiceID != "test-en-in" {
		t.Fatalf("expected regional voice, got %q", c.voiceID)
	}
}
