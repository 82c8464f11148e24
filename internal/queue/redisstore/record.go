package redisstore

import (
	"fmt"
	"strconv"
	"time"

	"lintfix/internal/queue"
)

// itemRecord is the flat hash layout of one item.
type itemRecord struct {
	ID         string `redis:"id"`
	SessionID  string `redis:"session_id"`
	FilePath   string `redis:"file_path"`
	Line       int    `redis:"line"`
	Column     int    `redis:"col"`
	IssueCode  string `redis:"issue_code"`
	Identity   string `redis:"identity"`
	Priority   int    `redis:"priority"`
	Seq        int64  `redis:"seq"`
	Payload    string `redis:"payload"`
	Status     string `redis:"status"`
	Worker     string `redis:"worker"`
	ClaimedAt  int64  `redis:"claimed_at"`
	Token      string `redis:"token"`
	RetryCount int    `redis:"retry_count"`
	MaxRetries int    `redis:"max_retries"`
	LastError  string `redis:"last_error"`
	Result     string `redis:"result"`
	CreatedAt  int64  `redis:"created_at"`
	UpdatedAt  int64  `redis:"updated_at"`
}

// newRecord captures a freshly prepared item. Claim and result fields are
// absent on a pending item.
func newRecord(item *queue.WorkItem, seq int64) (itemRecord, error) {
	payload, err := queue.EncodePayload(item.Payload)
	if err != nil {
		return itemRecord{}, err
	}
	return itemRecord{
		ID:         item.ID,
		SessionID:  item.SessionID,
		FilePath:   item.Location.FilePath,
		Line:       item.Location.Line,
		Column:     item.Location.Column,
		IssueCode:  item.IssueCode,
		Identity:   item.Identity().String(),
		Priority:   item.Priority,
		Seq:        seq,
		Payload:    payload,
		Status:     string(queue.StatusPending),
		RetryCount: item.RetryCount,
		MaxRetries: item.MaxRetries,
		CreatedAt:  item.CreatedAt.UnixMicro(),
		UpdatedAt:  item.UpdatedAt.UnixMicro(),
	}, nil
}

// fields flattens the pending record into HSET arguments.
func (r itemRecord) fields() []any {
	return []any{
		"id", r.ID,
		"session_id", r.SessionID,
		"file_path", r.FilePath,
		"line", strconv.Itoa(r.Line),
		"col", strconv.Itoa(r.Column),
		"issue_code", r.IssueCode,
		"identity", r.Identity,
		"priority", strconv.Itoa(r.Priority),
		"seq", strconv.FormatInt(r.Seq, 10),
		"payload", r.Payload,
		"status", r.Status,
		"retry_count", strconv.Itoa(r.RetryCount),
		"max_retries", strconv.Itoa(r.MaxRetries),
		"created_at", strconv.FormatInt(r.CreatedAt, 10),
		"updated_at", strconv.FormatInt(r.UpdatedAt, 10),
	}
}

func (r itemRecord) toItem() (*queue.WorkItem, error) {
	payload, err := queue.DecodePayload(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", r.ID, err)
	}
	result, err := queue.DecodeResult(r.Result)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", r.ID, err)
	}
	item := &queue.WorkItem{
		ID:             r.ID,
		SessionID:      r.SessionID,
		Location:       queue.Location{FilePath: r.FilePath, Line: r.Line, Column: r.Column},
		IssueCode:      r.IssueCode,
		Priority:       r.Priority,
		Payload:        payload,
		Status:         queue.Status(r.Status),
		AssignedWorker: r.Worker,
		ClaimToken:     r.Token,
		RetryCount:     r.RetryCount,
		MaxRetries:     r.MaxRetries,
		LastError:      r.LastError,
		Result:         result,
		CreatedAt:      fromMicros(r.CreatedAt),
		UpdatedAt:      fromMicros(r.UpdatedAt),
	}
	if r.ClaimedAt > 0 {
		ts := fromMicros(r.ClaimedAt)
		item.ClaimedAt = &ts
	}
	return item, nil
}

func micros(t time.Time) string {
	return strconv.FormatInt(t.UTC().UnixMicro(), 10)
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
