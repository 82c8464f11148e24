package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"lintfix/internal/queue"
)

// maxDetailBytes bounds how much fixer stderr is copied into a failure detail.
const maxDetailBytes = 2048

// Request is the JSON document written to the fixer's stdin.
type Request struct {
	SchemaVersion int           `json:"schema_version"`
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	File          string        `json:"file"`
	Line          int           `json:"line"`
	Column        int           `json:"column"`
	IssueCode     string        `json:"issue_code"`
	Attempt       int           `json:"attempt"`
	Payload       queue.Payload `json:"payload"`
}

// NewRequest describes item for the fixer.
func NewRequest(item *queue.WorkItem) Request {
	return Request{
		SchemaVersion: queue.PayloadSchemaVersion,
		ID:            item.ID,
		SessionID:     item.SessionID,
		File:          item.Location.FilePath,
		Line:          item.Location.Line,
		Column:        item.Location.Column,
		IssueCode:     item.IssueCode,
		Attempt:       item.RetryCount + 1,
		Payload:       item.Payload,
	}
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, argv []string, env []string, stdin []byte) (stdout, stderr []byte, err error)
}

// Option configures the Command.
type Option func(*Command)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Command) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithDir runs the fixer from dir instead of the current directory.
func WithDir(dir string) Option {
	return func(c *Command) {
		c.dir = strings.TrimSpace(dir)
	}
}

// Command runs an external fixer once per work item. The fixer reads a
// Request from stdin and prints a queue.Result as JSON on stdout; a non-zero
// exit, a timeout, or unparseable output is a failed attempt.
type Command struct {
	argv    []string
	timeout time.Duration
	dir     string
	exec    Executor
}

// NewCommand constructs a fixer processor for argv.
func NewCommand(argv []string, timeout time.Duration, opts ...Option) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("fixer command required (set worker.fixer_command)")
	}
	c := &Command{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
	}
	c.exec = commandExecutor{dir: func() string { return c.dir }}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Process implements worker.Processor.
func (c *Command) Process(ctx context.Context, item *queue.WorkItem) queue.Result {
	input, err := json.Marshal(NewRequest(item))
	if err != nil {
		return queue.Failed(fmt.Sprintf("encode fixer request: %v", err))
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	env := []string{
		"LINTFIX_ITEM_ID=" + item.ID,
		"LINTFIX_SESSION_ID=" + item.SessionID,
		"LINTFIX_ISSUE_CODE=" + item.IssueCode,
		"LINTFIX_FILE=" + item.Location.FilePath,
	}
	stdout, stderr, err := c.exec.Run(runCtx, c.argv, env, input)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return queue.Failed(fmt.Sprintf("fixer timed out after %s", c.timeout))
		}
		return queue.Failed(describeFailure(err, stderr))
	}
	return parseResult(stdout)
}

// parseResult decodes the last non-empty stdout line so fixers may print
// progress before their result.
func parseResult(stdout []byte) queue.Result {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return queue.Failed("fixer printed no result")
	}
	var result queue.Result
	if err := json.Unmarshal(last, &result); err != nil {
		return queue.Failed(fmt.Sprintf("invalid fixer output: %v", err))
	}
	if result.Confidence != nil && (*result.Confidence < 0 || *result.Confidence > 1) {
		return queue.Failed(fmt.Sprintf("fixer confidence %g outside [0, 1]", *result.Confidence))
	}
	return result
}

func describeFailure(err error, stderr []byte) string {
	msg := err.Error()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg = fmt.Sprintf("fixer exited with code %d", exitErr.ExitCode())
	}
	tail := strings.TrimSpace(string(stderr))
	if len(tail) > maxDetailBytes {
		cut := len(tail) - maxDetailBytes
		for cut < len(tail) && !utf8.RuneStart(tail[cut]) {
			cut++
		}
		tail = "..." + tail[cut:]
	}
	if tail == "" {
		return msg
	}
	return msg + ": " + tail
}

type commandExecutor struct {
	dir func() string
}

func (e commandExecutor) Run(ctx context.Context, argv []string, env []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	if e.dir != nil {
		cmd.Dir = e.dir()
	}
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
