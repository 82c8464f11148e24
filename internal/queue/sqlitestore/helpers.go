package sqlitestore

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lintfix/internal/queue"
)

const itemColumns = "id, session_id, file_path, line, col, issue_code, priority, payload_json, status, assigned_worker, claimed_at, claim_token, retry_count, max_retries, last_error, result_success, result_detail, result_confidence, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*queue.WorkItem, error) {
	var (
		id               int64
		sessionID        string
		filePath         string
		line             int
		col              int
		issueCode        string
		priority         int
		payloadJSON      string
		statusStr        string
		assignedWorker   sql.NullString
		claimedAt        sql.NullInt64
		claimToken       sql.NullString
		retryCount       int
		maxRetries       int
		lastError        sql.NullString
		resultSuccess    sql.NullInt64
		resultDetail     sql.NullString
		resultConfidence sql.NullFloat64
		createdAt        int64
		updatedAt        int64
	)

	if err := scanner.Scan(
		&id,
		&sessionID,
		&filePath,
		&line,
		&col,
		&issueCode,
		&priority,
		&payloadJSON,
		&statusStr,
		&assignedWorker,
		&claimedAt,
		&claimToken,
		&retryCount,
		&maxRetries,
		&lastError,
		&resultSuccess,
		&resultDetail,
		&resultConfidence,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	payload, err := queue.DecodePayload(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}

	item := &queue.WorkItem{
		ID:             formatID(id),
		SessionID:      sessionID,
		Location:       queue.Location{FilePath: filePath, Line: line, Column: col},
		IssueCode:      issueCode,
		Priority:       priority,
		Payload:        payload,
		Status:         queue.Status(statusStr),
		AssignedWorker: assignedWorker.String,
		ClaimToken:     claimToken.String,
		RetryCount:     retryCount,
		MaxRetries:     maxRetries,
		LastError:      lastError.String,
		CreatedAt:      fromMicros(createdAt),
		UpdatedAt:      fromMicros(updatedAt),
	}
	if claimedAt.Valid {
		ts := fromMicros(claimedAt.Int64)
		item.ClaimedAt = &ts
	}
	if resultSuccess.Valid {
		result := &queue.Result{
			Success: resultSuccess.Int64 != 0,
			Detail:  resultDetail.String,
			Skipped: item.Status == queue.StatusSkipped,
		}
		if resultConfidence.Valid {
			confidence := resultConfidence.Float64
			result.Confidence = &confidence
		}
		item.Result = result
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*queue.WorkItem, error) {
	defer rows.Close()
	var items []*queue.WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// parseID maps a non-numeric id to ErrNotFound: no row can carry it.
func parseID(id string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %q", queue.ErrNotFound, id)
	}
	return value, nil
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableConfidence(result *queue.Result) any {
	if result == nil || result.Confidence == nil {
		return nil
	}
	return *result.Confidence
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stringArgs[T ~string](values []T) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	return args
}
