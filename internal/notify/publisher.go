package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"btcmap-bot/internal/config"
)

// Publisher delivers one message to an external channel.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, message string) error
}

// CommandPublisher runs `command args... message`, e.g. `noscl publish <message>`.
// The message is always passed as one argument, never through a shell.
type CommandPublisher struct {
	command string
	args    []string
	timeout time.Duration
}

func NewCommandPublisher(cfg config.PublishConfig) *CommandPublisher {
	to := cfg.Timeout
	if to == 0 {
		to = 30 * time.Second
	}
	return &CommandPublisher{command: cfg.Command, args: append([]string(nil), cfg.Args...), timeout: to}
}

func (p *CommandPublisher) Name() string { return p.command }

// Publish discards stdout. The returned error is informational only.
func (p *CommandPublisher) Publish(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string(nil), p.args...), message)
	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, n: 1024}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", p.command, err, msg)
		}
		return fmt.Errorf("%s: %w", p.command, err)
	}
	return nil
}

type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(b []byte) (int, error) {
	total := len(b)
	if l.n <= 0 {
		return total, nil
	}
	if len(b) > l.n {
		b = b[:l.n]
	}
	n, err := l.w.Write(b)
	l.n -= n
	if err != nil {
		return n, err
	}
	return total, nil
}
