package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"lintfix/internal/queue"
)

// PoolOptions configures RunPool.
type PoolOptions struct {
	Concurrency int
	// Worker is the template for every worker. When Concurrency > 1 each
	// worker ID gets a "-N" suffix.
	Worker Options
	// Reclaimer, when set, runs in the same group as the workers.
	Reclaimer *Reclaimer
}

// Pool is a fixed set of workers sharing one store.
type Pool struct {
	workers   []*Worker
	reclaimer *Reclaimer
}

// NewPool builds the workers described by opts.
func NewPool(store queue.Store, processor Processor, opts PoolOptions) (*Pool, error) {
	n := opts.Concurrency
	if n <= 0 {
		n = 1
	}
	base := opts.Worker.ID
	if base == "" {
		base = DefaultID()
	}
	pool := &Pool{reclaimer: opts.Reclaimer}
	for i := 1; i <= n; i++ {
		wopts := opts.Worker
		wopts.ID = base
		if n > 1 {
			wopts.ID = fmt.Sprintf("%s-%d", base, i)
		}
		w, err := New(store, processor, wopts)
		if err != nil {
			return nil, err
		}
		pool.workers = append(pool.workers, w)
	}
	return pool, nil
}

// Workers returns the pool members.
func (p *Pool) Workers() []*Worker {
	return append([]*Worker(nil), p.workers...)
}

// Run starts every worker (and the reclaimer) and waits for all of them to
// stop. Cancelling ctx shuts the pool down after in-flight items are reported.
func (p *Pool) Run(ctx context.Context) error {
	if len(p.workers) == 0 {
		return errors.New("worker pool is empty")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	if p.reclaimer != nil {
		g.Go(func() error {
			return p.reclaimer.Run(gctx)
		})
	}
	return g.Wait()
}
