package queue

// PriorityStep is how far each failed attempt lowers an item's priority.
const PriorityStep = 1

// FailureDecision is the transition the retry policy chose for a failed claim.
type FailureDecision struct {
	Status     Status
	RetryCount int
	Priority   int
	LastError  string
	// Result is set only when the decision is terminal.
	Result *Result
}

// Requeued reports whether the item returns to pending.
func (d FailureDecision) Requeued() bool {
	return d.Status == StatusPending
}

// DecideFailure applies the retry policy shared by every backend: retries
// remain while RetryCount < MaxRetries, each retry increments RetryCount and
// lowers priority one step; otherwise the item fails permanently with the
// detail recorded in its result.
func DecideFailure(item WorkItem, detail string) FailureDecision {
	if item.RetryCount < item.MaxRetries {
		priority := item.Priority - PriorityStep
		if priority < MinPriority {
			priority = MinPriority
		}
		return FailureDecision{
			Status:     StatusPending,
			RetryCount: item.RetryCount + 1,
			Priority:   priority,
			LastError:  detail,
		}
	}
	result := Failed(detail)
	return FailureDecision{
		Status:     StatusFailed,
		RetryCount: item.RetryCount,
		Priority:   item.Priority,
		LastError:  detail,
		Result:     &result,
	}
}

// CompletionStatus maps a processor result onto the terminal status Complete stores.
func CompletionStatus(result Result) Status {
	if result.Skipped {
		return StatusSkipped
	}
	return StatusCompleted
}

// ClaimMatches reports whether claim is the item's current claim.
func ClaimMatches(item WorkItem, claim Claim) bool {
	return item.Status == StatusClaimed &&
		claim.Token != "" &&
		item.ClaimToken == claim.Token &&
		item.AssignedWorker == claim.WorkerID
}
