package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lintfix/internal/config"
	"lintfix/internal/logging"
)

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "lintfix.log")
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("queue opened", logging.String("backend", "sqlite"))

	content, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("expected one json line, got %q: %v", content, err)
	}
	if entry["msg"] != "queue opened" || entry["backend"] != "sqlite" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key: %v", entry)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Output: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Output: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Output: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithWorkerID(context.Background(), "host-1")
	ctx = logging.WithItem(ctx, "42", "session-a", "F401")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "worker")).
		Info("fixed issue", logging.String("file", "pkg/a.py"), logging.String("detail", "removed import"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{
		"INFO [worker] host-1 · item 42 (F401): fixed issue",
		"session_id=session-a",
		"file=pkg/a.py",
		`detail="removed import"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "worker_id=") || strings.Contains(line, "component=") {
		t.Fatalf("subject fields should not repeat as pairs: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no color codes when color is disabled: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "invalid", Output: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled for unknown level")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info enabled for unknown level")
	}
}

func TestContextFields(t *testing.T) {
	ctx := logging.WithWorkerID(context.Background(), "w1")
	ctx = logging.WithItem(ctx, "7", "", "E501")

	fields := logging.ContextFields(ctx)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	if got[logging.FieldWorkerID] != "w1" || got[logging.FieldItemID] != "7" || got[logging.FieldIssueCode] != "E501" {
		t.Fatalf("unexpected fields: %v", got)
	}
	if _, ok := got[logging.FieldSessionID]; ok {
		t.Fatalf("empty session should be omitted: %v", got)
	}
	if id, ok := logging.ItemIDFromContext(ctx); !ok || id != "7" {
		t.Fatalf("ItemIDFromContext = %q, %v", id, ok)
	}
}

func TestFormatSubject(t *testing.T) {
	cases := []struct {
		worker, item, code, want string
	}{
		{"w1", "3", "F401", "w1 · item 3 (F401)"},
		{"w1", "", "", "w1"},
		{"", "3", "", "item 3"},
		{"", "", "", ""},
	}
	for _, tc := range cases {
		if got := logging.FormatSubject(tc.worker, tc.item, tc.code); got != tc.want {
			t.Fatalf("FormatSubject(%q,%q,%q) = %q, want %q", tc.worker, tc.item, tc.code, got, tc.want)
		}
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "claim lost", "queue_stale_report",
		logging.String(logging.FieldImpact, "the item will be attempted again"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "queue_stale_report" {
		t.Fatalf("missing event type: %v", entry)
	}
	if entry[logging.FieldImpact] != "the item will be attempted again" {
		t.Fatalf("caller impact overridden: %v", entry)
	}
	if hint, _ := entry[logging.FieldErrorHint].(string); !strings.Contains(hint, "lintfix logs") {
		t.Fatalf("expected default hint, got %v", entry)
	}
}

func TestQuoteValue(t *testing.T) {
	cases := map[string]string{
		"":          `""`,
		"plain":     "plain",
		"two words": `"two words"`,
		"a=b":       `"a=b"`,
		`say "hi"`:  `"say \"hi\""`,
	}
	for in, want := range cases {
		if got := logging.QuoteValue(in); got != want {
			t.Fatalf("QuoteValue(%q) = %q, want %q", in, got, want)
		}
	}
}
