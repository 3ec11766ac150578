package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLocker serializes keys inside a single process. It is used when Redis
// is not configured; the database unique constraints still guard correctness
// across processes.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	opts    Options
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates a process-local locker.
func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]*localEntry),
		opts:    opts.normalized(),
	}
}

// WithLock implements Locker. Waiting is bounded by Tries*RetryDelay.
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if !validKey(key) {
		return ErrEmptyKey
	}

	entry := l.acquireEntry(key)
	defer l.releaseEntry(key, entry)

	wait := time.Duration(l.opts.Tries) * l.opts.RetryDelay
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	return fn(ctx)
}

func (l *LocalLocker) acquireEntry(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalLocker) releaseEntry(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}
