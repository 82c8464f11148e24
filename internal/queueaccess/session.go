package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"lintfix/internal/config"
	"lintfix/internal/queue"
)

// ErrLocked reports that another worker process holds the SQLite queue.
var ErrLocked = errors.New("queue is locked by another worker process")

// Session is an open store plus the resources that must be released with it.
type Session struct {
	Store   queue.Store
	Backend string
	lock    *flock.Flock
}

// SessionOptions controls OpenSession.
type SessionOptions struct {
	// Exclusive takes the SQLite lock file so only one worker process
	// drives an embedded queue. It is ignored for Redis.
	Exclusive bool
}

// OpenSession opens the configured store, taking the worker lock first when
// requested.
func OpenSession(ctx context.Context, cfg *config.Config, opts SessionOptions) (*Session, error) {
	session := &Session{Backend: cfg.Store.Backend}
	if opts.Exclusive && cfg.Store.Backend == config.BackendSQLite {
		lock, err := acquireLock(cfg.SQLite.LockPath)
		if err != nil {
			return nil, err
		}
		session.lock = lock
	}

	store, err := Open(ctx, cfg)
	if err != nil {
		session.unlock()
		return nil, err
	}
	session.Store = store
	return session, nil
}

// Close releases the store and, if held, the worker lock.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.Store != nil {
		err = s.Store.Close()
	}
	s.unlock()
	return err
}

func (s *Session) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}

func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire queue lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
	}
	return lock, nil
}
