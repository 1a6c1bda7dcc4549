package avatar

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aurelabs/aura-core/internal/bus"
	"github.com/aurelabs/aura-core/internal/config"
	"github.com/aurelabs/aura-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

const blinkDuration = 150 * time.Millisecond

// Service feeds the avatar renderer. It tracks the coordinator's speaking
// flag from the bus, runs its own blink cycle, and publishes one render
// frame per tick. One-way: the renderer produces nothing back.
type Service struct {
	cfg    config.AvatarConfig
	bus    *bus.Client
	logger *slog.Logger
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	speaking bool
	blinking bool
}

func NewService(parent context.Context, cfg config.AvatarConfig, busClient *bus.Client, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		logger: logger.With(slog.String("component", "avatar-bridge")),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectVoiceState, s.handleState)
	if err != nil {
		return err
	}
	s.sub = sub

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

func (s *Service) handleState(msg *nats.Msg) {
	var state protocol.VoiceState
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		s.logger.Warn("failed to decode voice state", slogError(err))
		return
	}
	s.mu.Lock()
	s.speaking = state.Speaking
	s.mu.Unlock()
}

func (s *Service) run() {
	defer s.wg.Done()

	frames := time.NewTicker(time.Duration(s.cfg.FrameIntervalMS) * time.Millisecond)
	defer frames.Stop()
	blinks := time.NewTicker(time.Duration(s.cfg.BlinkIntervalMS) * time.Millisecond)
	defer blinks.Stop()

	var blinkOff <-chan time.Time
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-blinks.C:
			s.mu.Lock()
			s.blinking = true
			s.mu.Unlock()
			blinkOff = time.After(blinkDuration)
		case <-blinkOff:
			s.mu.Lock()
			s.blinking = false
			s.mu.Unlock()
			blinkOff = nil
		case <-frames.C:
			s.publishFrame()
		}
	}
}

func (s *Service) publishFrame() {
	s.mu.Lock()
	frame := protocol.RenderFrame{Speaking: s.speaking, Blinking: s.blinking, Timestamp: time.Now().UTC()}
	s.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Warn("failed to marshal render frame", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectAvatarFrame, data); err != nil {
		s.logger.Warn("failed to publish render frame", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
