package queue

import (
	"context"
	"sort"
	"time"
)

// Store is the storage-agnostic work queue contract. Every mutating method is
// atomic with respect to concurrent callers, including callers in other
// processes when the backend is shared.
type Store interface {
	// Enqueue inserts item unless its identity key is already held by a
	// non-terminal item, reporting whether a new record was created.
	Enqueue(ctx context.Context, item *WorkItem) (bool, error)
	// EnqueueBatch enqueues items under sessionID and returns how many were new.
	EnqueueBatch(ctx context.Context, sessionID string, items []*WorkItem) (int, error)
	// Claim transitions up to limit pending items to claimed for workerID,
	// highest priority first and oldest first within a priority.
	Claim(ctx context.Context, limit int, workerID string, filter ClaimFilter) ([]*WorkItem, error)
	// Complete stores result on a claimed item and moves it to a terminal state.
	Complete(ctx context.Context, claim Claim, result Result) error
	// Fail applies the retry policy and returns the resulting status.
	Fail(ctx context.Context, claim Claim, detail string) (Status, error)
	// ReclaimStale treats every claim older than timeout as a failed attempt.
	ReclaimStale(ctx context.Context, timeout time.Duration) (ReclaimReport, error)
	// Stats aggregates the queue, optionally scoped to one session.
	Stats(ctx context.Context, sessionID string) (Stats, error)

	Get(ctx context.Context, id string) (*WorkItem, error)
	List(ctx context.Context, filter ListFilter) ([]*WorkItem, error)
	// RetryFailed resets failed items to pending with a fresh retry budget.
	// No ids means every failed item.
	RetryFailed(ctx context.Context, ids ...string) (int64, error)
	// Prune deletes terminal items last updated before cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// HeartbeatStore is implemented by backends that track worker liveness.
// Heartbeats are advisory; reclamation never depends on them.
type HeartbeatStore interface {
	Heartbeat(ctx context.Context, workerID string) error
	Workers(ctx context.Context) (map[string]time.Time, error)
}

// MaxFailureDetails bounds how many failed items Stats reports individually.
const MaxFailureDetails = 20

// FailureDetail describes a permanently failed item.
type FailureDetail struct {
	ID        string
	SessionID string
	Location  Location
	IssueCode string
	Error     string
	FailedAt  time.Time
}

// Stats is a read-only aggregate of queue state.
type Stats struct {
	SessionID string
	Counts    map[Status]int
	Total     int
	// SuccessRate is the fraction of completed items whose result succeeded.
	SuccessRate float64
	// AverageConfidence averages Result.Confidence over terminal items that
	// reported one; ConfidenceSamples is how many did.
	AverageConfidence float64
	ConfidenceSamples int
	Failures          []FailureDetail
}

// Count returns the number of items in status.
func (s Stats) Count(status Status) int {
	if s.Counts == nil {
		return 0
	}
	return s.Counts[status]
}

// StatsBuilder accumulates items into Stats for backends without aggregate queries.
type StatsBuilder struct {
	stats           Stats
	completed       int
	succeeded       int
	confidenceTotal float64
}

// NewStatsBuilder starts an aggregate for sessionID ("" for all sessions).
func NewStatsBuilder(sessionID string) *StatsBuilder {
	return &StatsBuilder{stats: Stats{SessionID: sessionID, Counts: make(map[Status]int, len(allStatuses))}}
}

// Add folds one item into the aggregate, ignoring items from other sessions.
func (b *StatsBuilder) Add(item *WorkItem) {
	if item == nil {
		return
	}
	if b.stats.SessionID != "" && item.SessionID != b.stats.SessionID {
		return
	}
	b.stats.Counts[item.Status]++
	b.stats.Total++
	if item.Status == StatusCompleted {
		b.completed++
		if item.Result != nil && item.Result.Success {
			b.succeeded++
		}
	}
	if item.Status.IsTerminal() && item.Result != nil && item.Result.Confidence != nil {
		b.confidenceTotal += *item.Result.Confidence
		b.stats.ConfidenceSamples++
	}
	if item.Status == StatusFailed {
		detail := FailureDetail{
			ID:        item.ID,
			SessionID: item.SessionID,
			Location:  item.Location,
			IssueCode: item.IssueCode,
			Error:     item.LastError,
			FailedAt:  item.UpdatedAt,
		}
		if detail.Error == "" && item.Result != nil {
			detail.Error = item.Result.Detail
		}
		b.stats.Failures = append(b.stats.Failures, detail)
	}
}

// Build finalizes the aggregate.
func (b *StatsBuilder) Build() Stats {
	out := b.stats
	out.Counts = make(map[Status]int, len(b.stats.Counts))
	for status, count := range b.stats.Counts {
		out.Counts[status] = count
	}
	if b.completed > 0 {
		out.SuccessRate = float64(b.succeeded) / float64(b.completed)
	}
	if out.ConfidenceSamples > 0 {
		out.AverageConfidence = b.confidenceTotal / float64(out.ConfidenceSamples)
	}
	out.Failures = append([]FailureDetail(nil), b.stats.Failures...)
	SortFailures(out.Failures)
	if len(out.Failures) > MaxFailureDetails {
		out.Failures = out.Failures[:MaxFailureDetails]
	}
	return out
}

// SortFailures orders failures most recent first, then by id.
func SortFailures(failures []FailureDetail) {
	sort.SliceStable(failures, func(i, j int) bool {
		if !failures[i].FailedAt.Equal(failures[j].FailedAt) {
			return failures[i].FailedAt.After(failures[j].FailedAt)
		}
		return failures[i].ID < failures[j].ID
	})
}
