// Package scheduler triggers crawl runs on a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/bookshelf-crawler/internal/crawler"
)

// DefaultExpression runs the crawl daily at 03:00.
const DefaultExpression = "0 3 * * *"

// Config controls the schedule. Expressions take five fields, an optional
// leading seconds field, or a descriptor such as "@hourly".
type Config struct {
	Expression string
	// Timezone is an IANA zone name; empty means UTC.
	Timezone string
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler invokes a crawler.Runner on every tick. Ticks that find a run
// still in progress are skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	runner   crawler.Runner
	logger   *zap.Logger

	mu      sync.Mutex
	baseCtx context.Context
}

// New validates cfg and prepares a stopped Scheduler.
func New(cfg Config, runner crawler.Runner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	expr := cfg.Expression
	if expr == "" {
		expr = DefaultExpression
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load schedule timezone %q: %w", tz, err)
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	cronLog := cronLogger{logger.Sugar()}
	s := &Scheduler{
		schedule: schedule,
		loc:      loc,
		runner:   runner,
		logger:   logger.With(zap.String("schedule", expr), zap.String("timezone", tz)),
		baseCtx:  context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Start begins firing ticks. Runs inherit ctx's values but not its
// cancellation; use Stop to end the schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("crawl schedule started", zap.Time("next_run", s.Next(time.Now())))
}

// Stop prevents new ticks and waits for an in-flight run or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Next returns the first tick strictly after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc))
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	res, err := s.runner.RunOnce(ctx)
	switch {
	case crawler.IsInProgress(err):
		s.logger.Warn("scheduled crawl skipped, another run is in progress")
	case err != nil:
		s.logger.Error("scheduled crawl failed", zap.Error(err))
	default:
		s.logger.Info("scheduled crawl finished",
			zap.String("run_id", res.RunID),
			zap.Int("pages", res.Pages),
			zap.Int("records", res.Records),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
