package form

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aurelabs/aura-core/internal/config"
	"github.com/aurelabs/aura-core/internal/voice"
)

// Field is one entry of the ordered field list. The order defines both UI
// rendering and voice-prompt order.
type Field struct {
	Key      string
	Label    string
	Prompt   string
	Validate func(string) bool
}

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigitPattern = regexp.MustCompile(`\D`)
)

// DefaultFields returns the contact-form field sequence.
func DefaultFields() []Field {
	return []Field{
		{
			Key:    "name",
			Label:  "name",
			Prompt: "What's your name?",
			Validate: func(v string) bool {
				return utf8.RuneCountInString(v) >= 2
			},
		},
		{
			Key:    "email",
			Label:  "email address",
			Prompt: "What's your email address?",
			Validate: func(v string) bool {
				return v != "" && emailPattern.MatchString(v)
			},
		},
		{
			Key:    "phone",
			Label:  "phone number",
			Prompt: "What's your phone number?",
			Validate: func(v string) bool {
				return len(nonDigitPattern.ReplaceAllString(v, "")) == 10 && v != ""
			},
		},
		{
			Key:    "message",
			Label:  "message",
			Prompt: "What message would you like to send?",
			Validate: func(v string) bool {
				return utf8.RuneCountInString(v) >= 10
			},
		},
	}
}

// Snapshot is a copy of the session state for UI rendering.
type Snapshot struct {
	Active       bool
	CurrentField string
	Values       map[string]string
	Errors       map[string]string
}

// Session drives a linear, voice-confirmed collection flow over an ordered
// field list. The coordinator is injected; the session never owns engines.
type Session struct {
	coord    *voice.Coordinator
	fields   []Field
	logger   *slog.Logger
	relisten time.Duration
	onUpdate func(Snapshot)

	mu          sync.Mutex
	values      map[string]string
	errors      map[string]string
	index       int
	active      bool
	watchCancel context.CancelFunc
	closed      bool
	wg          sync.WaitGroup
}

// NewSession builds a form session over the default field list. onUpdate, if
// non-nil, is invoked after every state change with a fresh snapshot.
func NewSession(coord *voice.Coordinator, cfg config.FormConfig, onUpdate func(Snapshot), logger *slog.Logger) *Session {
	delay := time.Duration(cfg.RelistenDelayMS) * time.Millisecond
	if delay <= 0 {
		delay = time.Second
	}
	return &Session{
		coord:    coord,
		fields:   DefaultFields(),
		logger:   logger.With(slog.String("component", "form-session")),
		relisten: delay,
		onUpdate: onUpdate,
		values:   make(map[string]string),
		errors:   make(map[string]string),
	}
}

// Start resets collected values and errors, activates the session, and
// prompts for the first field. The re-listen watcher keeps the multi-turn
// dialogue going without manual triggering per field.
func (s *Session) Start() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.values = make(map[string]string)
	s.errors = make(map[string]string)
	s.index = 0
	s.active = true
	first := s.fields[0]
	if s.watchCancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		s.wg.Add(1)
		go s.watch(ctx)
	}
	s.mu.Unlock()

	s.logger.Info("form session started")
	s.notify()
	s.coord.Speak("I'll help you fill out the contact form. Let's start with your " + first.Label + ". " + first.Prompt)
}

// HandleTranscript consumes one transcript for the current field. The heard
// value is stored verbatim before validation so the UI can display it even
// when invalid; a bad recognition therefore overwrites a previously good
// value on re-prompt.
func (s *Session) HandleTranscript(transcript string) {
	value := strings.TrimSpace(transcript)

	s.mu.Lock()
	if !s.active || value == "" {
		s.mu.Unlock()
		return
	}
	field := s.fields[s.index]
	s.values[field.Key] = value

	if !field.Validate(value) {
		s.errors[field.Key] = "Please provide a valid " + field.Label
		s.mu.Unlock()
		s.logger.Debug("field rejected", slog.String("field", field.Key))
		s.notify()
		s.coord.Speak("I didn't catch that properly. " + field.Prompt)
		return
	}

	delete(s.errors, field.Key)
	if s.index < len(s.fields)-1 {
		s.index++
		next := s.fields[s.index]
		s.mu.Unlock()
		s.logger.Debug("field accepted", slog.String("field", field.Key), slog.String("next", next.Key))
		s.notify()
		s.coord.Speak("Great! Now " + next.Prompt)
		return
	}

	summary := s.summaryLocked()
	s.active = false
	s.index = 0
	cancel := s.watchCancel
	s.watchCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Info("form session complete")
	s.notify()
	s.coord.Speak("Perfect! I've collected all your information. Here's what you provided: " + summary + ". Thank you for your message!")
}

// summaryLocked concatenates key: value pairs in field order. Caller holds mu.
func (s *Session) summaryLocked() string {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		parts = append(parts, f.Key+": "+s.values[f.Key])
	}
	return strings.Join(parts, ", ")
}

// Submit handles the typed (non-voice) submission path.
func (s *Session) Submit() {
	s.coord.Speak("Thank you! Your message has been sent successfully.")
}

// Active reports whether a voice-driven collection flow is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	errs := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	return Snapshot{
		Active:       s.active,
		CurrentField: s.fields[s.index].Key,
		Values:       values,
		Errors:       errs,
	}
}

// watch re-requests listening with this session's handler whenever the
// session is active and the coordinator is idle. The coordinator's own
// preconditions suppress the request while speaking or already listening.
func (s *Session) watch(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.relisten)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			active := s.active
			s.mu.Unlock()
			if !active {
				continue
			}
			if s.coord.Idle() {
				s.coord.StartListening(s.HandleTranscript)
			}
		}
	}
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate(s.Snapshot())
	}
}

// Close deactivates the session and cancels the watcher.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.active = false
	cancel := s.watchCancel
	s.watchCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
