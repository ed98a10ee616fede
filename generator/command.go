package generator

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
)

// Command runs an external program per generation. The rendering is written
// to its stdin and whatever it prints on stdout is the candidate.
type Command struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewCommand splits a shell-quoted command line. timeout 0 means none.
func NewCommand(line string, timeout time.Duration) (*Command, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrapf(err, "parse generator command %q", line)
	}
	if len(words) == 0 {
		return nil, errors.WithHint(ErrNoBackend, "generator.command is empty")
	}
	return &Command{
		name:    words[0],
		args:    words[1:],
		timeout: timeout,
	}, nil
}

// String is the command line, re-quoted
func (c *Command) String() string {
	return shellquote.Join(append([]string{c.name}, c.args...)...)
}

// Generate runs the command once
func (c *Command) Generate(ctx context.Context, b *bundle.Bundle, rendered string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logger.LoggerFromContext(logger.WithComponent(ctx, "generator"))

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(rendered)
	// grandchildren holding stdout open must not outlive the deadline
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(), "JITTER_TARGET="+b.Target.QualifiedName, "JITTER_TARGET_FILE="+b.Target.Location.File)

	var stdout bytes.Buffer
	stderr := &stderrLog{log: log, name: c.name}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	log.Debugw("Generator finished",
		logger.FieldTarget, b.Target.QualifiedName,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		logger.FieldError, err)

	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.Newf("generator %s timed out after %s", c.name, c.timeout)
	}
	if err != nil {
		return "", errors.WithDetail(
			errors.Wrapf(err, "generator %s failed", c.String()),
			stderr.tail())
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", errors.Newf("generator %s produced no output", c.name)
	}
	return out, nil
}

// stderrLog forwards the child's stderr to the debug log line by line and
// keeps the last lines for error details
type stderrLog struct {
	log  *zap.SugaredLogger
	name string

	mu      sync.Mutex
	partial []byte
	lines   []string
}

const stderrTailLines = 20

func (w *stderrLog) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *stderrLog) emit(line string) {
	w.log.Debugw(line, "generator", w.name)
	w.lines = append(w.lines, line)
	if len(w.lines) > stderrTailLines {
		w.lines = w.lines[len(w.lines)-stderrTailLines:]
	}
}

func (w *stderrLog) tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
	return strings.Join(w.lines, "\n")
}
