// Package worker runs the claim, process, and report loop against a
// queue.Store, plus the out-of-band reclaimer that recovers stale claims.
//
// A Worker claims one item at a time, hands it to a Processor, and reports
// the Result back to the store. Cancellation is honoured between iterations
// only: an item that has been claimed is always processed and reported, and
// a worker that dies mid-item leaves its claim to the Reclaimer. Pool runs
// several workers and a reclaimer under one errgroup.
package worker
