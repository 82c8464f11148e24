package queue

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
	// StatusSkipped is a terminal alias of StatusCompleted used for reporting.
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ProcessingTimeoutDetail is recorded when a stale claim is reclaimed.
const ProcessingTimeoutDetail = "processing timeout"

// Priority bounds keep Redis pending scores exact in float64.
const (
	MinPriority = -1_000_000
	MaxPriority = 1_000_000
)

// DefaultMaxRetries is the retry budget producers assign when configuration
// does not set one. Zero is a valid budget: the first failure is terminal.
const DefaultMaxRetries = 3

var allStatuses = []Status{
	StatusPending,
	StatusClaimed,
	StatusCompleted,
	StatusSkipped,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusSkipped:   {},
	StatusFailed:    {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// TerminalStatuses returns the statuses that never transition automatically.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusSkipped, StatusFailed}
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further automatic transition occurs.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Location identifies a position in a source file.
type Location struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Line, l.Column)
}

// IdentityKey is the tuple used to detect duplicate enqueues of the same issue.
type IdentityKey struct {
	SessionID string
	Location  Location
	IssueCode string
}

// String renders the key in a stable form usable as a map or hash field.
func (k IdentityKey) String() string {
	var b strings.Builder
	b.WriteString(k.SessionID)
	b.WriteByte('\x1f')
	b.WriteString(k.Location.FilePath)
	b.WriteByte('\x1f')
	b.WriteString(strconv.Itoa(k.Location.Line))
	b.WriteByte('\x1f')
	b.WriteString(strconv.Itoa(k.Location.Column))
	b.WriteByte('\x1f')
	b.WriteString(k.IssueCode)
	return b.String()
}

// Result captures the outcome of a processing attempt.
type Result struct {
	Success    bool     `json:"success"`
	Detail     string   `json:"detail,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Skipped    bool     `json:"skipped,omitempty"`
}

// Succeeded builds a successful result with an optional confidence score.
func Succeeded(detail string, confidence float64) Result {
	return Result{Success: true, Detail: detail, Confidence: &confidence}
}

// Failed builds an unsuccessful result.
func Failed(detail string) Result {
	return Result{Success: false, Detail: detail}
}

// Skip builds a result that completes the item as skipped.
func Skip(detail string) Result {
	return Result{Success: true, Detail: detail, Skipped: true}
}

// WorkItem is a single queued issue awaiting a fix attempt.
type WorkItem struct {
	ID             string
	SessionID      string
	Location       Location
	IssueCode      string
	Priority       int
	Payload        Payload
	Status         Status
	AssignedWorker string
	ClaimedAt      *time.Time
	ClaimToken     string
	RetryCount     int
	MaxRetries     int
	LastError      string
	Result         *Result
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity returns the deduplication key of the item.
func (i WorkItem) Identity() IdentityKey {
	return IdentityKey{SessionID: i.SessionID, Location: i.Location, IssueCode: i.IssueCode}
}

// Claim returns a handle on the item's current claim.
func (i WorkItem) Claim() Claim {
	return Claim{ItemID: i.ID, WorkerID: i.AssignedWorker, Token: i.ClaimToken}
}

// IsClaimed reports whether the item is held by a worker.
func (i WorkItem) IsClaimed() bool {
	return i.Status == StatusClaimed
}

// Validate checks the fields a producer must provide before enqueue.
func (i *WorkItem) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}
	if strings.TrimSpace(i.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidItem)
	}
	if strings.TrimSpace(i.Location.FilePath) == "" {
		return fmt.Errorf("%w: file path is required", ErrInvalidItem)
	}
	if strings.TrimSpace(i.IssueCode) == "" {
		return fmt.Errorf("%w: issue code is required", ErrInvalidItem)
	}
	if i.Location.Line < 0 || i.Location.Column < 0 {
		return fmt.Errorf("%w: negative line or column", ErrInvalidItem)
	}
	if i.Priority < MinPriority || i.Priority > MaxPriority {
		return fmt.Errorf("%w: priority %d outside [%d, %d]", ErrInvalidItem, i.Priority, MinPriority, MaxPriority)
	}
	if i.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidItem)
	}
	return nil
}

// PrepareEnqueue validates the item and stamps the fields assigned at enqueue.
// The ID is left to the backend.
func (i *WorkItem) PrepareEnqueue(now time.Time) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if i.Payload.SchemaVersion == 0 {
		i.Payload.SchemaVersion = PayloadSchemaVersion
	}
	i.Status = StatusPending
	i.AssignedWorker = ""
	i.ClaimedAt = nil
	i.ClaimToken = ""
	i.RetryCount = 0
	i.LastError = ""
	i.Result = nil
	i.CreatedAt = now
	i.UpdatedAt = now
	return nil
}

// Claim identifies one exclusive assignment of an item to a worker.
type Claim struct {
	ItemID   string
	WorkerID string
	Token    string
}

// ClaimFilter optionally restricts which pending items a claim may select.
type ClaimFilter struct {
	IssueCodes []string
}

// Empty reports whether the filter accepts every item.
func (f ClaimFilter) Empty() bool {
	return len(f.IssueCodes) == 0
}

// Matches reports whether an issue code passes the filter.
func (f ClaimFilter) Matches(code string) bool {
	if f.Empty() {
		return true
	}
	for _, candidate := range f.IssueCodes {
		if candidate == code {
			return true
		}
	}
	return false
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Statuses  []Status
	SessionID string
	Limit     int
}

// Matches reports whether item passes the status and session filters.
func (f ListFilter) Matches(item *WorkItem) bool {
	if item == nil {
		return false
	}
	if f.SessionID != "" && item.SessionID != f.SessionID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if item.Status == status {
			return true
		}
	}
	return false
}

// ReclaimReport summarizes a stale-claim sweep.
type ReclaimReport struct {
	Requeued int
	Failed   int
}

// Total returns the number of claims recovered.
func (r ReclaimReport) Total() int {
	return r.Requeued + r.Failed
}

// Now returns the current time at the precision both backends persist.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
