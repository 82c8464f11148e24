package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"lintfix/internal/processor"
	"lintfix/internal/queue"
	"lintfix/internal/queue/queuetest"
	"lintfix/internal/testsupport"
)

func sampleItem() *queue.WorkItem {
	item := queuetest.NewItem("session-1", "pkg/app.py", 12, "E501", 20)
	item.ID = "item-1"
	item.Location.Column = 4
	item.RetryCount = 1
	item.Payload.Message = "line too long"
	return item
}

func TestNewCommandRequiresArgv(t *testing.T) {
	if _, err := processor.NewCommand(nil, time.Second); err == nil {
		t.Fatal("expected error for empty argv")
	}
	if _, err := processor.NewCommand([]string{"  "}, time.Second); err == nil {
		t.Fatal("expected error for blank binary")
	}
}

func TestCommandParsesResult(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "fixer.sh", `cat > "$0.stdin"
echo "working on $LINTFIX_ISSUE_CODE"
echo '{"success":true,"detail":"wrapped line","confidence":0.8}'`)

	cmd, err := processor.NewCommand([]string{script}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result := cmd.Process(context.Background(), sampleItem())
	if !result.Success || result.Detail != "wrapped line" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Confidence == nil || *result.Confidence != 0.8 {
		t.Fatalf("unexpected confidence %v", result.Confidence)
	}
}

func TestCommandWritesRequestToStdin(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "echo.sh", `read -r line
printf '{"success":true,"detail":%s}\n' "$(printf '%s' "$line" | sed 's/"/\\"/g; s/^/"/; s/$/"/')"`)

	cmd, err := processor.NewCommand([]string{script}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result := cmd.Process(context.Background(), sampleItem())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	var req processor.Request
	if err := json.Unmarshal([]byte(result.Detail), &req); err != nil {
		t.Fatalf("decode echoed request %q: %v", result.Detail, err)
	}
	if req.ID != "item-1" || req.File != "pkg/app.py" || req.Line != 12 || req.Column != 4 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Attempt != 2 || req.Payload.Message != "line too long" {
		t.Fatalf("unexpected attempt or payload %+v", req)
	}
}

func TestCommandNonZeroExitFails(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "fail.sh", `echo "cannot parse file" >&2
exit 3`)

	cmd, err := processor.NewCommand([]string{script}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result := cmd.Process(context.Background(), sampleItem())
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !strings.Contains(result.Detail, "code 3") || !strings.Contains(result.Detail, "cannot parse file") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCommandTimeout(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "slow.sh", `exec sleep 10`)

	cmd, err := processor.NewCommand([]string{script}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	start := time.Now()
	result := cmd.Process(context.Background(), sampleItem())
	if result.Success || !strings.Contains(result.Detail, "timed out") {
		t.Fatalf("expected timeout failure, got %+v", result)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout not enforced, took %s", time.Since(start))
	}
}

type stubExecutor struct {
	stdout string
	stderr string
	err    error
	argv   []string
	env    []string
}

func (s *stubExecutor) Run(_ context.Context, argv []string, env []string, _ []byte) ([]byte, []byte, error) {
	s.argv = argv
	s.env = env
	return []byte(s.stdout), []byte(s.stderr), s.err
}

func TestCommandRejectsBadOutput(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
		want   string
	}{
		{"empty", "", "no result"},
		{"not json", "done\n", "invalid fixer output"},
		{"confidence range", `{"success":true,"confidence":1.5}`, "outside [0, 1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{stdout: tc.stdout}
			cmd, err := processor.NewCommand([]string{"fixer"}, time.Second, processor.WithExecutor(exec))
			if err != nil {
				t.Fatalf("NewCommand: %v", err)
			}
			result := cmd.Process(context.Background(), sampleItem())
			if result.Success || !strings.Contains(result.Detail, tc.want) {
				t.Fatalf("expected failure containing %q, got %+v", tc.want, result)
			}
		})
	}
}

func TestCommandSkipAndEnv(t *testing.T) {
	exec := &stubExecutor{stdout: `{"success":true,"skipped":true,"detail":"generated file"}`}
	cmd, err := processor.NewCommand([]string{"fixer", "--apply"}, time.Second, processor.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result := cmd.Process(context.Background(), sampleItem())
	if queue.CompletionStatus(result) != queue.StatusSkipped {
		t.Fatalf("expected skipped result, got %+v", result)
	}
	if len(exec.argv) != 2 || exec.argv[1] != "--apply" {
		t.Fatalf("unexpected argv %v", exec.argv)
	}
	found := false
	for _, kv := range exec.env {
		if kv == "LINTFIX_ITEM_ID=item-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("item id missing from env %v", exec.env)
	}
}

func TestCommandExecutorErrorWithoutExitCode(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exec: \"fixer\": executable file not found")}
	cmd, err := processor.NewCommand([]string{"fixer"}, time.Second, processor.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result := cmd.Process(context.Background(), sampleItem())
	if result.Success || !strings.Contains(result.Detail, "executable file not found") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCommandTruncatesStderrOnRuneBoundary(t *testing.T) {
	exec := &stubExecutor{
		stderr: strings.Repeat("€", 1500),
		err:    errors.New("fixer crashed"),
	}
	cmd, err := processor.NewCommand([]string{"fixer"}, time.Second, processor.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result := cmd.Process(context.Background(), sampleItem())
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !utf8.ValidString(result.Detail) {
		t.Fatalf("detail is not valid UTF-8: %q", result.Detail)
	}
	if !strings.HasPrefix(result.Detail, "fixer crashed: ...€") || !strings.HasSuffix(result.Detail, "€") {
		t.Fatalf("unexpected detail head/tail in %q", result.Detail[:40])
	}
	if len(result.Detail) > len("fixer crashed: ...")+2048 {
		t.Fatalf("detail not truncated: %d bytes", len(result.Detail))
	}
}
