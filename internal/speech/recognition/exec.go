package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execEngine shells out to a command that owns audio capture and prints one
// JSON result per invocation.
type execEngine struct {
	cmd []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func NewExecEngine(command string) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse recognition command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("recognition command is empty")
	}
	return &execEngine{cmd: args}, nil
}

func (e *execEngine) Listen(ctx context.Context) (<-chan Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	events := make(chan Event, 4)
	go func() {
		defer close(events)
		defer cancel()

		command := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		command.Stdout = &stdout
		command.Stderr = &stderr

		if err := command.Start(); err != nil {
			events <- Event{Kind: KindError, Err: fmt.Errorf("start recognition command: %w", err)}
			events <- Event{Kind: KindEnded}
			return
		}
		events <- Event{Kind: KindStarted}

		if err := command.Wait(); err != nil {
			if ctx.Err() == nil {
				events <- Event{Kind: KindError, Err: fmt.Errorf("recognition command failed: %w: %s", err, stderr.String())}
			}
			events <- Event{Kind: KindEnded}
			return
		}

		var resp execResult
		if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
			events <- Event{Kind: KindError, Err: fmt.Errorf("decode recognition result: %w", err)}
			events <- Event{Kind: KindEnded}
			return
		}
		events <- Event{Kind: KindResult, Transcript: resp.Text, Confidence: resp.Confidence}
		events <- Event{Kind: KindEnded}
	}()
	return events, nil
}

func (e *execEngine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
