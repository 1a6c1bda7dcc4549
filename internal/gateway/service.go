package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aurelabs/aura-core/internal/bus"
	"github.com/aurelabs/aura-core/internal/chat"
	"github.com/aurelabs/aura-core/internal/form"
	"github.com/aurelabs/aura-core/internal/protocol"
	"github.com/aurelabs/aura-core/internal/voice"
	"github.com/nats-io/nats.go"
)

// Service translates bus commands from the UI surfaces into session calls
// and session updates into bus events. The surfaces themselves live outside
// this process; this is their only way in.
type Service struct {
	bus    *bus.Client
	coord  *voice.Coordinator
	logger *slog.Logger

	form *form.Session
	chat *chat.Session

	ctx    context.Context
	cancel context.CancelFunc
	subs   []*nats.Subscription
}

func NewService(parent context.Context, busClient *bus.Client, coord *voice.Coordinator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:    busClient,
		coord:  coord,
		logger: logger.With(slog.String("component", "gateway")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Bind attaches the sessions the gateway routes to. Must be called before
// Start; either session may be nil when its surface is disabled.
func (s *Service) Bind(formSession *form.Session, chatSession *chat.Session) {
	s.form = formSession
	s.chat = chatSession
}

func (s *Service) Start() error {
	if s.form == nil && s.chat == nil {
		return errors.New("gateway requires at least one bound session")
	}

	subjects := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{protocol.SubjectUIFormStart, s.handleFormStart},
		{protocol.SubjectUIFormSubmit, s.handleFormSubmit},
		{protocol.SubjectUIChatOpen, s.handleChatOpen},
		{protocol.SubjectUIChatClose, s.handleChatClose},
		{protocol.SubjectUIChatSend, s.handleChatSend},
		{protocol.SubjectUIVoiceListen, s.handleVoiceListen},
		{protocol.SubjectUIVoiceStop, s.handleVoiceStop},
	}
	for _, sub := range subjects {
		subscription, err := s.bus.Conn().Subscribe(sub.subject, sub.handler)
		if err != nil {
			s.drain()
			return err
		}
		s.subs = append(s.subs, subscription)
	}
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.drain()
}

func (s *Service) Healthy() bool { return len(s.subs) > 0 }

func (s *Service) drain() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.subs = nil
}

func (s *Service) handleFormStart(_ *nats.Msg) {
	if s.form == nil {
		return
	}
	s.form.Start()
}

func (s *Service) handleFormSubmit(_ *nats.Msg) {
	if s.form == nil {
		return
	}
	s.form.Submit()
}

func (s *Service) handleChatOpen(_ *nats.Msg) {
	if s.chat == nil {
		return
	}
	s.chat.Open()
}

func (s *Service) handleChatClose(_ *nats.Msg) {
	if s.chat == nil {
		return
	}
	s.chat.Close()
}

func (s *Service) handleChatSend(msg *nats.Msg) {
	if s.chat == nil {
		return
	}
	var send protocol.ChatSend
	if err := json.Unmarshal(msg.Data, &send); err != nil {
		s.logger.Warn("failed to decode chat send", slogError(err))
		return
	}
	s.chat.SubmitText(send.Text)
}

func (s *Service) handleVoiceListen(msg *nats.Msg) {
	var cmd protocol.VoiceListen
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("failed to decode listen command", slogError(err))
		return
	}
	switch cmd.Target {
	case "form":
		if s.form != nil {
			s.coord.StartListening(s.form.HandleTranscript)
		}
	case "chat":
		if s.chat != nil {
			s.coord.StartListening(s.chat.HandleTranscript)
		}
	default:
		s.logger.Warn("unknown listen target", slog.String("target", cmd.Target))
	}
}

func (s *Service) handleVoiceStop(_ *nats.Msg) {
	s.coord.StopListening()
}

// PublishFormState is wired as the form session's update hook.
func (s *Service) PublishFormState(snap form.Snapshot) {
	state := protocol.FormState{
		Active:       snap.Active,
		CurrentField: snap.CurrentField,
		Values:       snap.Values,
		Errors:       snap.Errors,
		Timestamp:    time.Now().UTC(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Warn("failed to marshal form state", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectFormState, data); err != nil {
		s.logger.Warn("failed to publish form state", slogError(err))
	}
}

// PublishChatMessage is wired as the chat session's message hook.
func (s *Service) PublishChatMessage(sessionID string, msg chat.Message) {
	event := protocol.ChatMessage{
		ID:        msg.ID,
		SessionID: sessionID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		Voice:     msg.Voice,
		CreatedAt: msg.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal chat message", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectChatMessage, data); err != nil {
		s.logger.Warn("failed to publish chat message", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
