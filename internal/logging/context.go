package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldWorkerID is the standardized structured logging key for worker identifiers.
	FieldWorkerID = "worker_id"
	// FieldItemID is the standardized structured logging key for work item identifiers.
	FieldItemID = "item_id"
	// FieldSessionID is the standardized structured logging key for lint session identifiers.
	FieldSessionID = "session_id"
	// FieldIssueCode is the standardized structured logging key for linter rule codes.
	FieldIssueCode = "issue_code"
	// FieldFile is the standardized structured logging key for the file a work item points at.
	FieldFile = "file"
	// FieldEventType classifies a log line for filtering (e.g. claim_failed).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
)

type contextKey string

const (
	workerIDKey  contextKey = "worker_id"
	itemIDKey    contextKey = "item_id"
	sessionIDKey contextKey = "session_id"
	issueCodeKey contextKey = "issue_code"
)

// WithWorkerID records the worker identifier for log enrichment.
func WithWorkerID(ctx context.Context, id string) context.Context {
	return withString(ctx, workerIDKey, id)
}

// WithItem records the work item being processed.
func WithItem(ctx context.Context, itemID, sessionID, issueCode string) context.Context {
	ctx = withString(ctx, itemIDKey, itemID)
	ctx = withString(ctx, sessionIDKey, sessionID)
	return withString(ctx, issueCodeKey, issueCode)
}

// WorkerIDFromContext returns the worker identifier if present.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, workerIDKey)
}

// ItemIDFromContext returns the work item identifier if present.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, itemIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := stringFrom(ctx, workerIDKey); ok {
		fields = append(fields, slog.String(FieldWorkerID, id))
	}
	if id, ok := stringFrom(ctx, itemIDKey); ok {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if id, ok := stringFrom(ctx, sessionIDKey); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if code, ok := stringFrom(ctx, issueCodeKey); ok {
		fields = append(fields, slog.String(FieldIssueCode, code))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
