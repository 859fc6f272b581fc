package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	"github.com/JakeFAU/bookshelf-crawler/internal/runlock"
)

const releaseTimeout = 5 * time.Second

// Runner runs one crawl to completion or failure.
type Runner interface {
	RunOnce(ctx context.Context) (Result, error)
}

// Service guards Driver runs with the run lock and an overall deadline. It
// is the single entry point for scheduled and on-demand crawls.
type Service struct {
	driver  *Driver
	locker  runlock.Locker
	timeout time.Duration
	logger  *zap.Logger
}

var _ Runner = (*Service)(nil)

// NewService wraps driver. A zero timeout leaves runs unbounded.
func NewService(driver *Driver, locker runlock.Locker, timeout time.Duration, logger *zap.Logger) *Service {
	if locker == nil {
		locker = runlock.NewLocal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{driver: driver, locker: locker, timeout: timeout, logger: logger}
}

// RunOnce performs a single crawl. It returns catalog.ErrCrawlInProgress
// without crawling when another run holds the lock.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	lock, err := s.locker.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lock.Release(relCtx); err != nil {
			s.logger.Warn("release run lock", zap.Error(err))
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.driver.Run(ctx)
}

// IsInProgress reports whether err means a run was already in flight.
func IsInProgress(err error) bool {
	return errors.Is(err, catalog.ErrCrawlInProgress)
}
