// Package runlock guarantees at most one crawl run at a time, either within
// one process or across replicas sharing a Redis instance.
package runlock

import (
	"context"
	"sync"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
)

// Lock is a held run lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out the run lock. Acquire never waits: when the lock is held
// it returns catalog.ErrCrawlInProgress.
type Locker interface {
	Acquire(ctx context.Context) (Lock, error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

var _ Locker = (*Local)(nil)

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	return &Local{}
}

// Acquire implements Locker.
func (l *Local) Acquire(context.Context) (Lock, error) {
	if !l.mu.TryLock() {
		return nil, catalog.ErrCrawlInProgress
	}
	return &localLock{mu: &l.mu}, nil
}

type localLock struct {
	mu   *sync.Mutex
	once sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(l.mu.Unlock)
	return nil
}
