package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lintfix/internal/queue"
)

// itemView is the JSON shape of a work item in CLI output.
type itemView struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	File           string        `json:"file"`
	Line           int           `json:"line"`
	Column         int           `json:"column"`
	IssueCode      string        `json:"issue_code"`
	Priority       int           `json:"priority"`
	Status         string        `json:"status"`
	AssignedWorker string        `json:"assigned_worker,omitempty"`
	ClaimedAt      string        `json:"claimed_at,omitempty"`
	RetryCount     int           `json:"retry_count"`
	MaxRetries     int           `json:"max_retries"`
	LastError      string        `json:"last_error,omitempty"`
	Payload        queue.Payload `json:"payload"`
	Result         *queue.Result `json:"result,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

func newItemView(item *queue.WorkItem) itemView {
	view := itemView{
		ID:             item.ID,
		SessionID:      item.SessionID,
		File:           item.Location.FilePath,
		Line:           item.Location.Line,
		Column:         item.Location.Column,
		IssueCode:      item.IssueCode,
		Priority:       item.Priority,
		Status:         string(item.Status),
		AssignedWorker: item.AssignedWorker,
		RetryCount:     item.RetryCount,
		MaxRetries:     item.MaxRetries,
		LastError:      item.LastError,
		Payload:        item.Payload,
		Result:         item.Result,
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.Format(time.RFC3339),
	}
	if item.ClaimedAt != nil {
		view.ClaimedAt = item.ClaimedAt.Format(time.RFC3339)
	}
	return view
}

type statsView struct {
	SessionID         string         `json:"session_id,omitempty"`
	Counts            map[string]int `json:"counts"`
	Total             int            `json:"total"`
	SuccessRate       float64        `json:"success_rate"`
	AverageConfidence *float64       `json:"average_confidence,omitempty"`
	Failures          []failureView  `json:"failures,omitempty"`
}

type failureView struct {
	ID        string `json:"id"`
	Location  string `json:"location"`
	IssueCode string `json:"issue_code"`
	Error     string `json:"error"`
	FailedAt  string `json:"failed_at"`
}

func newStatsView(stats queue.Stats) statsView {
	view := statsView{
		SessionID:   stats.SessionID,
		Counts:      make(map[string]int, len(queue.AllStatuses())),
		Total:       stats.Total,
		SuccessRate: stats.SuccessRate,
	}
	for _, status := range queue.AllStatuses() {
		view.Counts[string(status)] = stats.Count(status)
	}
	if stats.ConfidenceSamples > 0 {
		avg := stats.AverageConfidence
		view.AverageConfidence = &avg
	}
	for _, f := range stats.Failures {
		view.Failures = append(view.Failures, failureView{
			ID:        f.ID,
			Location:  f.Location.String(),
			IssueCode: f.IssueCode,
			Error:     f.Error,
			FailedAt:  f.FailedAt.Format(time.RFC3339),
		})
	}
	return view
}

func buildStatusRows(stats queue.Stats) [][]string {
	rows := make([][]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		rows = append(rows, []string{string(status), strconv.Itoa(stats.Count(status))})
	}
	return rows
}

func buildListRows(items []*queue.WorkItem, now time.Time) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			string(item.Status),
			strconv.Itoa(item.Priority),
			item.Location.String(),
			item.IssueCode,
			fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries),
			item.AssignedWorker,
			formatAge(now, item.UpdatedAt),
		})
	}
	return rows
}

func buildFailureRows(failures []queue.FailureDetail) [][]string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.ID, f.Location.String(), f.IssueCode, truncate(f.Error, 60)})
	}
	return rows
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

// formatAge renders how long ago t was, coarsened for tables.
func formatAge(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, raw := range values {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
