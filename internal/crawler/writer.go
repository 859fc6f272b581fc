package crawler

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
)

// DefaultBatchSize bounds concurrent store writes per batch.
const DefaultBatchSize = 10

// Writer upserts records in fixed-size batches. Records inside a batch are
// written concurrently; batches run one after another.
type Writer struct {
	store     catalog.BookWriter
	batchSize int
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewWriter returns a Writer over store.
func NewWriter(store catalog.BookWriter, batchSize int, logger *zap.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:     store,
		batchSize: batchSize,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Upsert writes records and returns how many were processed. The first
// failing record fails its batch and stops the remaining batches; the count
// then covers only the batches that completed.
func (w *Writer) Upsert(ctx context.Context, records []catalog.BookRecord) (int, error) {
	written := 0
	for start := 0; start < len(records); start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("upsert canceled: %w", err)
		}
		batch := records[start:min(start+w.batchSize, len(records))]
		if err := w.writeBatch(ctx, batch); err != nil {
			return written, err
		}
		written += len(batch)
	}
	return written, nil
}

func (w *Writer) writeBatch(ctx context.Context, batch []catalog.BookRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range batch {
		g.Go(func() error {
			if err := w.validate.StructCtx(gctx, rec); err != nil {
				return &catalog.WriteError{DetailURL: rec.DetailURL, Err: fmt.Errorf("invalid record: %w", err)}
			}
			if _, err := w.store.UpsertBook(gctx, rec); err != nil {
				return &catalog.WriteError{DetailURL: rec.DetailURL, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.logger.Warn("batch upsert failed", zap.Int("batch_size", len(batch)), zap.Error(err))
		return err
	}
	return nil
}
