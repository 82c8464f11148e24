package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"lintfix/internal/config"
	"lintfix/internal/logging"
	"lintfix/internal/queue"
)

// Enqueuer is the slice of queue.Store the producer needs.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, sessionID string, items []*queue.WorkItem) (int, error)
}

// Producer converts linter diagnostics into work items.
type Producer struct {
	store      Enqueuer
	linter     string
	exclude    []string
	queue      config.Queue
	maxRetries int
	logger     *slog.Logger
}

// Report summarises one Enqueue run.
type Report struct {
	SessionID  string
	Parsed     int
	Ignored    int
	Excluded   int
	Queued     int
	Duplicates int
}

// New builds a producer from configuration.
func New(store Enqueuer, cfg *config.Config, logger *slog.Logger) (*Producer, error) {
	if store == nil {
		return nil, errors.New("producer requires a store")
	}
	if cfg == nil {
		return nil, errors.New("producer requires configuration")
	}
	for _, pattern := range cfg.Producer.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Producer{
		store:      store,
		linter:     strings.TrimSpace(cfg.Producer.Linter),
		exclude:    append([]string(nil), cfg.Producer.Exclude...),
		queue:      cfg.Queue,
		maxRetries: cfg.Queue.DefaultMaxRetries,
		logger:     logger.With(logging.String(logging.FieldComponent, "producer")),
	}, nil
}

// Excluded reports whether path matches an exclude glob. A pattern also
// excludes everything below a matching directory.
func (p *Producer) Excluded(path string) bool {
	for _, pattern := range p.exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern+"/**", path); ok {
			return true
		}
	}
	return false
}

// Items builds work items for issues, skipping excluded paths.
func (p *Producer) Items(sessionID string, issues []Issue) (items []*queue.WorkItem, excluded int) {
	for _, issue := range issues {
		if p.Excluded(issue.Path) {
			excluded++
			continue
		}
		items = append(items, &queue.WorkItem{
			SessionID: sessionID,
			Location:  queue.Location{FilePath: issue.Path, Line: issue.Line, Column: issue.Column},
			IssueCode: issue.Code,
			Priority:  p.queue.PriorityFor(issue.Code),
			Payload: queue.Payload{
				SchemaVersion: queue.PayloadSchemaVersion,
				Message:       issue.Message,
				Linter:        p.linter,
				Severity:      severityFor(issue.Code),
			},
			MaxRetries: p.maxRetries,
		})
	}
	return items, excluded
}

// Enqueue parses r and queues every non-excluded diagnostic under sessionID.
// An empty sessionID starts a new session.
func (p *Producer) Enqueue(ctx context.Context, sessionID string, r io.Reader) (Report, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	report := Report{SessionID: sessionID}

	issues, ignored, err := Parse(r)
	report.Parsed = len(issues)
	report.Ignored = ignored
	if err != nil {
		return report, err
	}

	items, excluded := p.Items(sessionID, issues)
	report.Excluded = excluded
	if len(items) == 0 {
		p.logger.Info("no issues to enqueue",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Int("parsed", report.Parsed),
			logging.Int("excluded", excluded),
		)
		return report, nil
	}

	queued, err := p.store.EnqueueBatch(ctx, sessionID, items)
	report.Queued = queued
	report.Duplicates = len(items) - queued
	if err != nil {
		return report, fmt.Errorf("enqueue session %s: %w", sessionID, err)
	}
	p.logger.Info("issues enqueued",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldEventType, "issues_enqueued"),
		logging.Int("parsed", report.Parsed),
		logging.Int("queued", report.Queued),
		logging.Int("duplicates", report.Duplicates),
		logging.Int("excluded", report.Excluded),
	)
	return report, nil
}
