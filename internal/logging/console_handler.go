package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiGray   = "\x1b[90m"
)

// consoleHandler renders one line per record:
//
//	2026-01-02 15:04:05.000 INFO [worker] worker-1 · item 42 (F401): fixed issue key=value
//
// The component, worker, item, and issue code attributes form the prefix and
// are not repeated as key/value pairs. Groups flatten into dotted keys.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	source bool
	color  bool
	group  string  // dotted prefix for keys added from here on
	fields []field // attributes bound through WithAttrs
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource, color bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, source: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.group, attr)
		return true
	})
	fields = lastValueWins(fields)

	var component, workerID, itemID, issueCode string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = plainValue(f.value)
		case FieldWorkerID:
			workerID = plainValue(f.value)
		case FieldItemID:
			itemID = plainValue(f.value)
		case FieldIssueCode:
			issueCode = plainValue(f.value)
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.WriteString(FormatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(h.levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [" + component + "]")
	}
	if subject := FormatSubject(workerID, itemID, issueCode); subject != "" {
		buf.WriteString(" " + subject + ":")
	}
	buf.WriteString(" " + message)
	if h.source {
		if src := record.Source(); src != nil {
			buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	for _, f := range rest {
		buf.WriteString(" " + f.key + "=" + consoleValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = slices.Clone(h.fields)
	for _, attr := range attrs {
		next.fields = appendField(next.fields, h.group, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.fields = slices.Clone(h.fields)
	next.group = h.group + name + "."
	return &next
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	var label, code string
	switch {
	case level >= slog.LevelError:
		label, code = "ERROR", ansiRed
	case level >= slog.LevelWarn:
		label, code = "WARN", ansiYellow
	case level >= slog.LevelInfo:
		label, code = "INFO", ansiBlue
	default:
		label, code = "DEBUG", ansiGray
	}
	if !h.color {
		return label
	}
	return code + label + ansiReset
}

// FormatSubject builds the worker/item/code subject used in console output.
func FormatSubject(workerID, itemID, issueCode string) string {
	workerID = strings.TrimSpace(workerID)
	itemID = strings.TrimSpace(itemID)
	issueCode = strings.TrimSpace(issueCode)
	parts := make([]string, 0, 2)
	if workerID != "" {
		parts = append(parts, workerID)
	}
	switch {
	case itemID != "" && issueCode != "":
		parts = append(parts, "item "+itemID+" ("+issueCode+")")
	case itemID != "":
		parts = append(parts, "item "+itemID)
	case issueCode != "":
		parts = append(parts, issueCode)
	}
	return strings.Join(parts, " · ")
}

func appendField(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range value.Group() {
			dst = appendField(dst, prefix, member)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	return append(dst, field{key: prefix + attr.Key, value: value})
}

// lastValueWins drops repeated keys, keeping the first position and the
// final value.
func lastValueWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}
