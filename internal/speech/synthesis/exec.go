package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execEngine pipes one JSON utterance to a command that owns audio playback.
type execEngine struct {
	cmd []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

type execRequest struct {
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Voice  string  `json:"voice"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

func NewExecEngine(command string) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command is empty")
	}
	return &execEngine{cmd: args}, nil
}

func (e *execEngine) Speak(ctx context.Context, utt Utterance) (<-chan Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	events := make(chan Event, 2)
	go func() {
		defer close(events)
		defer cancel()

		payload, err := json.Marshal(execRequest{
			Text:   utt.Text,
			Lang:   utt.Lang,
			Voice:  utt.VoiceID,
			Rate:   utt.Rate,
			Pitch:  utt.Pitch,
			Volume: utt.Volume,
		})
		if err != nil {
			events <- Event{Kind: KindError, Err: err}
			return
		}

		command := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
		stdin, err := command.StdinPipe()
		if err != nil {
			events <- Event{Kind: KindError, Err: err}
			return
		}
		if err := command.Start(); err != nil {
			events <- Event{Kind: KindError, Err: fmt.Errorf("start synthesis command: %w", err)}
			return
		}
		events <- Event{Kind: KindStarted}

		if _, err := stdin.Write(payload); err != nil {
			stdin.Close()
			command.Wait()
			events <- Event{Kind: KindError, Err: err}
			return
		}
		stdin.Close()

		if err := command.Wait(); err != nil {
			events <- Event{Kind: KindError, Err: fmt.Errorf("synthesis command failed: %w", err)}
			return
		}
		events <- Event{Kind: KindEnded}
	}()
	return events, nil
}

func (e *execEngine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Voices is empty for exec backends; the command applies its own default.
func (e *execEngine) Voices() []Voice { return nil }
