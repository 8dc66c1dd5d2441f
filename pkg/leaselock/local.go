package leaselock

import (
	"context"
	"sync"
)

// Local is an in-process Locker for single-binary deployments without
// PostgreSQL. Leases never expire; Options.TTL is ignored.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]chan struct{})}
}

// WithLease implements Locker. Waiters wake when the holder releases, so
// Options.WaitInterval is not used either. It is not reentrant.
func (l *Local) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if key == "" {
		return errEmptyKey
	}
	for {
		l.mu.Lock()
		released, busy := l.held[key]
		if !busy {
			released = make(chan struct{})
			l.held[key] = released
			l.mu.Unlock()
			break
		}
		l.mu.Unlock()

		if !opts.Wait {
			return ErrBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
		}
	}

	defer func() {
		l.mu.Lock()
		close(l.held[key])
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

var (
	_ Locker = (*Client)(nil)
	_ Locker = (*Local)(nil)
)
