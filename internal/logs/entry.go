package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"lintfix/internal/logging"
)

// Entry is one decoded JSON log record.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Message   string
	Component string
	WorkerID  string
	ItemID    string
	SessionID string
	IssueCode string
	EventType string
	// Attrs holds every other top-level field, stringified.
	Attrs map[string]string
}

var entryKeys = map[string]struct{}{
	"ts": {}, "level": {}, "msg": {},
	logging.FieldComponent: {}, logging.FieldWorkerID: {}, logging.FieldItemID: {},
	logging.FieldSessionID: {}, logging.FieldIssueCode: {}, logging.FieldEventType: {},
}

// ParseEntry decodes one log line.
func ParseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("decode log line: %w", err)
	}
	entry := Entry{
		Message:   str(raw["msg"]),
		Component: str(raw[logging.FieldComponent]),
		WorkerID:  str(raw[logging.FieldWorkerID]),
		ItemID:    str(raw[logging.FieldItemID]),
		SessionID: str(raw[logging.FieldSessionID]),
		IssueCode: str(raw[logging.FieldIssueCode]),
		EventType: str(raw[logging.FieldEventType]),
	}
	if ts := str(raw["ts"]); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Time = parsed
		}
	}
	if lvl := str(raw["level"]); lvl != "" {
		_ = entry.Level.UnmarshalText([]byte(lvl))
	}
	for key, value := range raw {
		if _, known := entryKeys[key]; known {
			continue
		}
		if entry.Attrs == nil {
			entry.Attrs = make(map[string]string)
		}
		entry.Attrs[key] = str(value)
	}
	return entry, nil
}

// Format renders the entry on one line in the console layout.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString(logging.FormatTimestamp(e.Time))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-5s", e.Level.String()))
	if e.Component != "" {
		b.WriteString(" [" + e.Component + "]")
	}
	if subject := logging.FormatSubject(e.WorkerID, e.ItemID, e.IssueCode); subject != "" {
		b.WriteString(" " + subject + ":")
	}
	b.WriteString(" " + e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(" " + key + "=" + logging.QuoteValue(e.Attrs[key]))
	}
	return b.String()
}

// Filter selects entries. Empty fields match everything.
type Filter struct {
	ItemID    string
	WorkerID  string
	SessionID string
	MinLevel  slog.Level
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if e.Level < f.MinLevel {
		return false
	}
	if f.ItemID != "" && e.ItemID != f.ItemID {
		return false
	}
	if f.WorkerID != "" && e.WorkerID != f.WorkerID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	return true
}

func str(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
