package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aurelabs/aura-core/internal/bus"
	"github.com/aurelabs/aura-core/internal/config"
	"github.com/aurelabs/aura-core/internal/protocol"
	"github.com/aurelabs/aura-core/internal/speech/recognition"
	"github.com/aurelabs/aura-core/internal/speech/synthesis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Handler consumes the transcript of one completed recognition attempt.
// Exactly one handler is active at a time; registering a new one replaces
// the previous one wholesale.
type Handler func(transcript string)

type sessionState int

const (
	stateIdle sessionState = iota
	stateListening
	stateSpeaking
)

// Coordinator is the single source of truth for whether the runtime is
// currently capturing audio input or producing audio output, and for routing
// each transcript to the one active handler.
//
// Listening and speaking are mutually exclusive. The internal state machine
// transitions at command acceptance, which keeps the forbidden
// Listening <-> Speaking transitions enforced in one place; the exported
// IsListening/IsSpeaking flags flip only on engine start/end/error events.
type Coordinator struct {
	cfg    config.VoiceConfig
	recog  recognition.Engine
	synth  synthesis.Engine
	bus    *bus.Client
	logger *slog.Logger

	voiceID string

	utterances     metric.Int64Counter
	transcripts    metric.Int64Counter
	rejectedStarts metric.Int64Counter

	mu         sync.Mutex
	state      sessionState
	speaking   bool
	listening  bool
	handler    Handler
	listenGen  uint64
	speakGen   uint64
	listenStop context.CancelFunc
	speakStop  context.CancelFunc
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New builds a coordinator over the given engines. Either engine may be nil,
// in which case the corresponding operations degrade to logged no-ops. The
// bus client may be nil; state changes are then not broadcast.
func New(parent context.Context, cfg config.VoiceConfig, recog recognition.Engine, synth synthesis.Engine, busClient *bus.Client, logger *slog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		cfg:    cfg,
		recog:  recog,
		synth:  synth,
		bus:    busClient,
		logger: logger.With(slog.String("component", "voice-coordinator")),
		ctx:    ctx,
		cancel: cancel,
	}

	if recog == nil {
		c.logger.Warn("speech recognition unavailable; listening disabled")
	}
	if synth == nil {
		c.logger.Warn("speech synthesis unavailable; speaking disabled")
	} else {
		c.voiceID = cfg.Synthesis.Voice
		if c.voiceID == "" {
			c.voiceID = synthesis.ChooseVoice(synth.Voices(), cfg.VoiceLocale)
		}
	}

	c.initMetrics()
	return c
}

func (c *Coordinator) initMetrics() {
	meter := otel.Meter("github.com/aurelabs/aura-core/voice")
	var err error
	if c.utterances, err = meter.Int64Counter("voice.utterances"); err != nil {
		c.logger.Warn("failed to create utterance counter", slogError(err))
	}
	if c.transcripts, err = meter.Int64Counter("voice.transcripts"); err != nil {
		c.logger.Warn("failed to create transcript counter", slogError(err))
	}
	if c.rejectedStarts, err = meter.Int64Counter("voice.rejected_starts"); err != nil {
		c.logger.Warn("failed to create rejected-start counter", slogError(err))
	}
}

// IsSpeaking reports whether synthesis is confirmed in flight.
func (c *Coordinator) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// IsListening reports whether a capture is confirmed in flight.
func (c *Coordinator) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Idle reports whether neither mode is active or pending. Consumers that
// sequence "prompt then listen" poll this rather than the two flags.
func (c *Coordinator) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateIdle
}

// RegisterHandler replaces the active transcript handler without touching
// either engine.
func (c *Coordinator) RegisterHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.handler = h
}

// Speak cancels any in-flight utterance and begins synthesizing text with the
// configured voice parameters. No-op when text is empty, synthesis is
// unavailable, or a capture is active.
func (c *Coordinator) Speak(text string) {
	if text == "" {
		c.logger.Debug("ignoring empty utterance")
		return
	}
	if c.synth == nil {
		c.logger.Debug("speak ignored; synthesis unavailable")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state == stateListening {
		c.mu.Unlock()
		c.countRejected()
		c.logger.Debug("speak rejected while listening")
		return
	}
	if c.state == stateSpeaking {
		if c.speakStop != nil {
			c.speakStop()
		}
		c.synth.Cancel()
	}
	c.state = stateSpeaking
	c.speakGen++
	gen := c.speakGen
	ctx, stop := context.WithCancel(c.ctx)
	c.speakStop = stop
	utt := synthesis.Utterance{
		Text:    text,
		Lang:    c.cfg.Language,
		Rate:    c.cfg.Rate,
		Pitch:   c.cfg.Pitch,
		Volume:  c.cfg.Volume,
		VoiceID: c.voiceID,
	}
	c.mu.Unlock()

	events, err := c.synth.Speak(ctx, utt)
	if err != nil {
		c.logger.Warn("failed to start synthesis", slogError(err))
		// The generation bump above detached any preempted pump, so the
		// speaking flag must be settled here as well.
		c.mu.Lock()
		changed := false
		if gen == c.speakGen {
			if c.speaking {
				c.speaking = false
				changed = true
			}
			if c.state == stateSpeaking {
				c.state = stateIdle
			}
			c.speakStop = nil
		}
		speaking, listening := c.speaking, c.listening
		c.mu.Unlock()
		if changed {
			c.publishState(speaking, listening)
		}
		return
	}
	if c.utterances != nil {
		c.utterances.Add(c.ctx, 1)
	}

	c.wg.Add(1)
	go c.pumpSynthesis(gen, events)
}

func (c *Coordinator) pumpSynthesis(gen uint64, events <-chan synthesis.Event) {
	defer c.wg.Done()
	for ev := range events {
		switch ev.Kind {
		case synthesis.KindStarted:
			c.mu.Lock()
			changed := false
			if gen == c.speakGen && !c.speaking {
				c.speaking = true
				changed = true
			}
			speaking, listening := c.speaking, c.listening
			c.mu.Unlock()
			if changed {
				c.publishState(speaking, listening)
			}
		case synthesis.KindError, synthesis.KindEnded:
			if ev.Kind == synthesis.KindError && ev.Err != nil && !errors.Is(ev.Err, context.Canceled) {
				c.logger.Warn("synthesis error", slogError(ev.Err))
			}
			c.mu.Lock()
			changed := false
			if gen == c.speakGen {
				if c.speaking {
					c.speaking = false
					changed = true
				}
				if c.state == stateSpeaking {
					c.state = stateIdle
				}
				c.speakStop = nil
			}
			speaking, listening := c.speaking, c.listening
			c.mu.Unlock()
			if changed {
				c.publishState(speaking, listening)
			}
		}
	}
}

// StartListening begins a one-shot capture with handler as the sole active
// transcript consumer. Rejected (logged no-op) when recognition is
// unavailable or the coordinator is not idle; callers may race with
// asynchronous state updates, so rejection is silent by design.
func (c *Coordinator) StartListening(handler Handler) {
	if c.recog == nil {
		c.logger.Debug("start listening ignored; recognition unavailable")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state != stateIdle {
		c.mu.Unlock()
		c.countRejected()
		c.logger.Debug("start listening rejected; coordinator busy")
		return
	}
	c.state = stateListening
	c.listenGen++
	gen := c.listenGen
	c.handler = handler
	ctx, stop := context.WithCancel(c.ctx)
	c.listenStop = stop
	c.mu.Unlock()

	events, err := c.recog.Listen(ctx)
	if err != nil {
		c.logger.Warn("failed to start recognition", slogError(err))
		c.mu.Lock()
		if gen == c.listenGen && c.state == stateListening {
			c.state = stateIdle
			c.listenStop = nil
		}
		c.mu.Unlock()
		return
	}

	c.wg.Add(1)
	go c.pumpRecognition(gen, events)
}

func (c *Coordinator) pumpRecognition(gen uint64, events <-chan recognition.Event) {
	defer c.wg.Done()
	delivered := false
	for ev := range events {
		switch ev.Kind {
		case recognition.KindStarted:
			c.mu.Lock()
			changed := false
			if gen == c.listenGen && !c.listening {
				c.listening = true
				changed = true
			}
			speaking, listening := c.speaking, c.listening
			c.mu.Unlock()
			if changed {
				c.publishState(speaking, listening)
			}
		case recognition.KindResult:
			c.mu.Lock()
			if gen != c.listenGen {
				c.mu.Unlock()
				continue
			}
			handler := c.handler
			changed := c.listening
			c.listening = false
			c.state = stateIdle
			speaking, listening := c.speaking, c.listening
			c.mu.Unlock()
			if changed {
				c.publishState(speaking, listening)
			}
			c.publishTranscript(ev.Transcript, ev.Confidence)
			if c.transcripts != nil {
				c.transcripts.Add(c.ctx, 1)
			}
			if handler != nil && !delivered {
				delivered = true
				handler(ev.Transcript)
			}
		case recognition.KindError:
			if ev.Err != nil && !errors.Is(ev.Err, context.Canceled) {
				c.logger.Warn("recognition error", slogError(ev.Err))
			}
			c.settleListening(gen)
		case recognition.KindEnded:
			c.settleListening(gen)
		}
	}
}

// settleListening resets listening state after an engine error or natural
// end; stale events from a superseded capture are ignored.
func (c *Coordinator) settleListening(gen uint64) {
	c.mu.Lock()
	if gen != c.listenGen {
		c.mu.Unlock()
		return
	}
	changed := c.listening
	c.listening = false
	if c.state == stateListening {
		c.state = stateIdle
	}
	c.listenStop = nil
	speaking, listening := c.speaking, c.listening
	c.mu.Unlock()
	if changed {
		c.publishState(speaking, listening)
	}
}

// StopListening halts the capture in flight and clears the active handler.
// No-op when not listening.
func (c *Coordinator) StopListening() {
	if c.recog == nil {
		return
	}

	c.mu.Lock()
	if c.state != stateListening {
		c.mu.Unlock()
		c.logger.Debug("stop listening ignored; not listening")
		return
	}
	c.listenGen++
	c.state = stateIdle
	changed := c.listening
	c.listening = false
	c.handler = nil
	stop := c.listenStop
	c.listenStop = nil
	speaking, listening := c.speaking, c.listening
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.recog.Stop()
	if changed {
		c.publishState(speaking, listening)
	}
}

// Close stops any capture and cancels any utterance, best effort, then waits
// for the event pumps to drain so no callback fires against a torn-down
// consumer.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.listenGen++
	c.speakGen++
	c.state = stateIdle
	c.speaking = false
	c.listening = false
	c.handler = nil
	c.listenStop = nil
	c.speakStop = nil
	c.mu.Unlock()

	c.cancel()
	if c.recog != nil {
		c.recog.Stop()
	}
	if c.synth != nil {
		c.synth.Cancel()
	}
	c.wg.Wait()
}

func (c *Coordinator) countRejected() {
	if c.rejectedStarts != nil {
		c.rejectedStarts.Add(c.ctx, 1)
	}
}

func (c *Coordinator) publishState(speaking, listening bool) {
	if c.bus == nil {
		return
	}
	state := protocol.VoiceState{Speaking: speaking, Listening: listening, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(state)
	if err != nil {
		c.logger.Warn("failed to marshal voice state", slogError(err))
		return
	}
	if err := c.bus.Conn().Publish(protocol.SubjectVoiceState, data); err != nil {
		c.logger.Warn("failed to publish voice state", slogError(err))
	}
}

func (c *Coordinator) publishTranscript(text string, confidence float64) {
	if c.bus == nil || text == "" {
		return
	}
	evt := protocol.TranscriptEvent{Text: text, Confidence: confidence, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(evt)
	if err != nil {
		c.logger.Warn("failed to marshal transcript", slogError(err))
		return
	}
	if err := c.bus.Conn().Publish(protocol.SubjectVoiceTranscript, data); err != nil {
		c.logger.Warn("failed to publish transcript", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
