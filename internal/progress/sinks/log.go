package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookshelf-crawler/internal/progress"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. RUN_ERROR is logged at error level.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("url", evt.URL),
			zap.Int("page", evt.Page),
			zap.Int("records", evt.Records),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StagePageDone:
			fields = append(fields,
				zap.Int("skipped", evt.Skipped),
				zap.Int64("bytes", evt.Bytes),
				zap.String("status_class", string(evt.StatusClass)),
			)
			s.logger.Debug("crawl progress", fields...)
		case progress.StageRunError:
			s.logger.Error("crawl progress", append(fields, zap.String("note", evt.Note))...)
		default:
			s.logger.Info("crawl progress", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
