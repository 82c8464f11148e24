package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

const (
	// ConsoleTimestampLayout is used for console lines, in local time.
	ConsoleTimestampLayout = "2006-01-02 15:04:05.000"
	// JSONTimestampLayout is used for the ts key of JSON lines, in UTC.
	JSONTimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// FormatTimestamp renders ts in the console layout. Zero times render empty.
func FormatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(ConsoleTimestampLayout)
}

// QuoteValue quotes s when it would not survive a key=value split.
func QuoteValue(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return strconv.Quote(s)
		}
	}
	return s
}

// plainValue is the unquoted text of v; subject fields use it as is.
func plainValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', 6, 64)
	case slog.KindDuration:
		d := v.Duration()
		if d > time.Millisecond {
			d = d.Round(time.Millisecond)
		}
		return d.String()
	case slog.KindTime:
		return FormatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func consoleValue(v slog.Value) string {
	return QuoteValue(plainValue(v))
}
