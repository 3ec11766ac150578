// Package lock provides short per-key leases used to serialize work on a
// single resource, such as completing one payment intent.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotAcquired is returned when a lease stays held by someone else for the
// whole retry budget.
var ErrNotAcquired = errors.New("lease not acquired")

// ErrEmptyKey is returned when the lease key is blank.
var ErrEmptyKey = errors.New("lease key cannot be empty")

// Locker runs fn while holding the lease for key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Options configures lease acquisition.
type Options struct {
	// Expiry bounds how long a crashed holder can block the key.
	Expiry time.Duration
	// Tries is the number of acquisition attempts.
	Tries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultOptions suits request-scoped critical sections.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 100 * time.Millisecond,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Expiry <= 0 {
		o.Expiry = def.Expiry
	}
	if o.Tries < 1 {
		o.Tries = def.Tries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = def.RetryDelay
	}
	return o
}

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}
