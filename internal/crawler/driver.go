package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	"github.com/JakeFAU/bookshelf-crawler/internal/progress"
)

const unboundedVisitedSize = 1 << 16

// Config controls a crawl run.
type Config struct {
	RootURL string
	// MaxPages fails the run when the listing paginates past it. 0 disables.
	MaxPages int
	// DetectCycles fails the run when a next link revisits a page.
	DetectCycles bool
}

// Result summarizes a finished run.
type Result struct {
	RunID      string    `json:"runId"`
	Pages      int       `json:"pages"`
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Driver executes crawl runs.
type Driver struct {
	cfg       Config
	fetcher   catalog.Fetcher
	extractor catalog.Extractor
	writer    *Writer
	clock     catalog.Clock
	ids       catalog.IDGenerator
	events    progress.Emitter
	logger    *zap.Logger
}

// NewDriver constructs a Driver. A nil events emitter discards events.
func NewDriver(
	cfg Config,
	fetcher catalog.Fetcher,
	extractor catalog.Extractor,
	writer *Writer,
	clock catalog.Clock,
	ids catalog.IDGenerator,
	events progress.Emitter,
	logger *zap.Logger,
) *Driver {
	if events == nil {
		events = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		writer:    writer,
		clock:     clock,
		ids:       ids,
		events:    events,
		logger:    logger,
	}
}

// run is the mutable state of one crawl.
type run struct {
	id      [16]byte
	state   State
	current string
	page    int
	resp    catalog.FetchResponse
	out     catalog.Page
	visited *lru.Cache[string, struct{}]
	result  Result
}

// Run crawls from the root URL until the listing has no next page. Any
// failure aborts the run with a *catalog.CrawlError; records written before
// the failure stay written.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	runID, err := d.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("allocate run id: %w", err)
	}
	size := d.cfg.MaxPages
	if size <= 0 {
		size = unboundedVisitedSize
	}
	visited, err := lru.New[string, struct{}](size)
	if err != nil {
		return Result{}, fmt.Errorf("visited set: %w", err)
	}
	parsed, err := uuid.Parse(runID)
	if err != nil {
		return Result{}, fmt.Errorf("run id %q is not a UUID: %w", runID, err)
	}
	r := &run{
		id:      progress.UUIDToBytes(parsed),
		state:   StateStart,
		current: d.cfg.RootURL,
		visited: visited,
		result:  Result{RunID: runID, StartedAt: d.clock.Now()},
	}
	logger := d.logger.With(zap.String("run_id", runID))
	logger.Info("crawl run starting", zap.String("root_url", r.current))
	d.emit(r, progress.Event{Stage: progress.StageRunStart, URL: r.current})

	var failure error
	for !r.state.Terminal() {
		stepErr := d.step(ctx, r)
		if stepErr != nil {
			failure = &catalog.CrawlError{Stage: string(r.state), PageURL: r.current, Page: r.page, Err: stepErr}
		}
		hasNext := r.out.NextURL != ""
		next := Next(r.state, stepErr != nil, hasNext)
		logger.Debug("crawl transition", zap.String("from", string(r.state)), zap.String("to", string(next)))
		r.state = next
		if next == StateFetching && hasNext {
			r.current = r.out.NextURL
			r.out = catalog.Page{}
		}
	}

	r.result.FinishedAt = d.clock.Now()
	elapsed := r.result.FinishedAt.Sub(r.result.StartedAt)
	if failure != nil {
		logger.Error("crawl run failed",
			zap.Int("pages", r.result.Pages),
			zap.Int("records", r.result.Records),
			zap.Error(failure),
		)
		d.emit(r, progress.Event{Stage: progress.StageRunError, URL: r.current, Page: r.page, Dur: elapsed, Note: failure.Error()})
		return r.result, failure
	}
	logger.Info("crawl run finished",
		zap.Int("pages", r.result.Pages),
		zap.Int("records", r.result.Records),
		zap.Int("skipped", r.result.Skipped),
		zap.Duration("elapsed", elapsed),
	)
	d.emit(r, progress.Event{Stage: progress.StageRunDone, URL: d.cfg.RootURL, Records: r.result.Records, Dur: elapsed})
	return r.result, nil
}

// step performs the work belonging to r.state.
func (d *Driver) step(ctx context.Context, r *run) error {
	switch r.state {
	case StateFetching:
		r.page++
		r.visited.Add(r.current, struct{}{})
		resp, err := d.fetcher.Fetch(ctx, r.current)
		if err != nil {
			return err
		}
		r.resp = resp
		r.result.Pages++
	case StateExtracting:
		page, err := d.extractor.Extract(r.current, r.resp.Body)
		if err != nil {
			return fmt.Errorf("extract page: %w", err)
		}
		if page.NextURL != "" {
			if d.cfg.DetectCycles && r.visited.Contains(page.NextURL) {
				return fmt.Errorf("%w: %s links back to %s", catalog.ErrCycleDetected, r.current, page.NextURL)
			}
			if d.cfg.MaxPages > 0 && r.page >= d.cfg.MaxPages {
				return fmt.Errorf("%w: %d pages", catalog.ErrPageLimitExceeded, d.cfg.MaxPages)
			}
		}
		r.out = page
	case StateWriting:
		n, err := d.writer.Upsert(ctx, r.out.Records)
		r.result.Records += n
		if err != nil {
			return err
		}
		r.result.Skipped += r.out.Skipped
		d.emit(r, progress.Event{
			Stage:       progress.StagePageDone,
			URL:         r.current,
			Page:        r.page,
			Records:     n,
			Skipped:     r.out.Skipped,
			Bytes:       int64(len(r.resp.Body)),
			StatusClass: progress.ClassifyStatus(r.resp.StatusCode),
			Dur:         r.resp.Duration,
		})
	}
	return nil
}

func (d *Driver) emit(r *run, evt progress.Event) {
	evt.RunID = r.id
	evt.TS = d.clock.Now()
	d.events.Emit(evt)
}
