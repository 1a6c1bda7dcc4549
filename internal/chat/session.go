package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aurelabs/aura-core/internal/chatlog"
	"github.com/aurelabs/aura-core/internal/config"
	"github.com/aurelabs/aura-core/internal/voice"
	"github.com/google/uuid"
)

const (
	SenderUser   = "user"
	SenderAvatar = "avatar"
)

// Message is one entry of the append-only chat log. Never mutated after
// creation.
type Message struct {
	ID        string
	Text      string
	Sender    string
	Voice     bool
	CreatedAt time.Time
}

// Session is the free-form chat consumer: one user turn in, one canned
// avatar reply out, spoken through the injected coordinator. The log lives
// only while the surface is open; reopening starts from empty.
type Session struct {
	coord      *voice.Coordinator
	store      *chatlog.Store
	responder  *Responder
	logger     *slog.Logger
	replyDelay time.Duration
	onMessage  func(sessionID string, msg Message)

	mu        sync.Mutex
	open      bool
	sessionID string
	messages  []Message
	turnStop  context.CancelFunc
	turnCtx   context.Context
	closed    bool
	wg        sync.WaitGroup
}

// NewSession builds a chat session. The store may be nil (no transcript
// retention at all); onMessage, if non-nil, fires for every appended message.
func NewSession(coord *voice.Coordinator, cfg config.ChatConfig, store *chatlog.Store, onMessage func(string, Message), logger *slog.Logger) *Session {
	return &Session{
		coord:      coord,
		store:      store,
		responder:  NewResponder(),
		logger:     logger.With(slog.String("component", "chat-session")),
		replyDelay: time.Duration(cfg.ReplyDelayMS) * time.Millisecond,
		onMessage:  onMessage,
	}
}

// Open starts a fresh surface session with an empty log.
func (s *Session) Open() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.open {
		s.mu.Unlock()
		return
	}
	s.open = true
	s.sessionID = uuid.NewString()
	s.messages = nil
	s.turnCtx, s.turnStop = context.WithCancel(context.Background())
	s.mu.Unlock()
	s.logger.Info("chat surface opened", slog.String("session_id", s.SessionID()))
}

// Close ends the surface session. Pending reply turns are dropped and the
// stored transcript for this session is deleted; the next Open starts empty.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	sessionID := s.sessionID
	stop := s.turnStop
	s.turnStop = nil
	s.messages = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if s.store != nil {
		if err := s.store.DeleteSession(context.Background(), sessionID); err != nil {
			s.logger.Warn("failed to delete chat session", slogError(err))
		}
	}
	s.logger.Info("chat surface closed", slog.String("session_id", sessionID))
}

// SessionID returns the current surface session id, empty when closed.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ""
	}
	return s.sessionID
}

// HandleTranscript consumes one voice turn.
func (s *Session) HandleTranscript(transcript string) {
	s.turn(transcript, true)
}

// SubmitText consumes one typed turn.
func (s *Session) SubmitText(text string) {
	s.turn(text, false)
}

func (s *Session) turn(text string, isVoice bool) {
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	ctx := s.turnCtx
	s.appendLocked(Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    SenderUser,
		Voice:     isVoice,
		CreatedAt: time.Now().UTC(),
	})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.replyDelay):
		}

		reply := s.responder.Reply(text)

		s.mu.Lock()
		if !s.open {
			s.mu.Unlock()
			return
		}
		s.appendLocked(Message{
			ID:        uuid.NewString(),
			Text:      reply,
			Sender:    SenderAvatar,
			CreatedAt: time.Now().UTC(),
		})
		s.mu.Unlock()

		s.coord.Speak(reply)
	}()
}

// appendLocked adds to the in-memory log, the store, and the hook. Caller
// holds mu.
func (s *Session) appendLocked(msg Message) {
	s.messages = append(s.messages, msg)
	sessionID := s.sessionID
	if s.store != nil {
		if err := s.store.Append(context.Background(), sessionID, chatlog.Entry{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Text:      msg.Text,
			Voice:     msg.Voice,
			CreatedAt: msg.CreatedAt,
		}); err != nil {
			s.logger.Warn("failed to store chat message", slogError(err))
		}
	}
	if s.onMessage != nil {
		s.onMessage(sessionID, msg)
	}
}

// Messages copies the current surface log in append order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Shutdown tears the session down for good.
func (s *Session) Shutdown() {
	s.Close()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
