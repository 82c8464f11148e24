package worker

import (
	"context"

	"lintfix/internal/queue"
)

// Processor attempts a fix for one claimed item. An unsuccessful Result is
// reported as a failed attempt; a skipped Result completes the item as
// skipped. Implementations report problems through the Result rather than
// panicking; a panic is recovered and treated as a failed attempt.
type Processor interface {
	Process(ctx context.Context, item *queue.WorkItem) queue.Result
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item *queue.WorkItem) queue.Result

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, item *queue.WorkItem) queue.Result {
	return f(ctx, item)
}
