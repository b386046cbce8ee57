package pipeline

import (
	"context"
	"log/slog"
	"time"

	"fleet-monitor/detector/internal/metrics"
)

// BatchWriter drains a channel into batches and flushes them when full, on
// every tick, and when the channel closes or ctx ends.
type BatchWriter[T any] struct {
	ch        <-chan T
	insert    func(ctx context.Context, batch []T) error
	table     string
	batchSize int
	flushMS   int
	retryWait time.Duration
	log       *slog.Logger
}

func NewBatchWriter[T any](
	ch <-chan T,
	table string,
	insert func(ctx context.Context, batch []T) error,
	batchSize int,
	flushMS int,
	log *slog.Logger,
) *BatchWriter[T] {
	return &BatchWriter[T]{
		ch:        ch,
		insert:    insert,
		table:     table,
		batchSize: batchSize,
		flushMS:   flushMS,
		retryWait: 500 * time.Millisecond,
		log:       log.With("component", "batch_writer", "table", table),
	}
}

func (w *BatchWriter[T]) Run(ctx context.Context) {
	batch := make([]T, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case item, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(context.WithoutCancel(ctx), batch)
				}
				return
			}
			batch = append(batch, item)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(context.WithoutCancel(ctx), batch)
			}
			return
		}
	}
}

func (w *BatchWriter[T]) flush(ctx context.Context, batch []T) {
	err := w.insert(ctx, batch)
	if err != nil {
		w.log.Warn("write failed, retrying", "batch", len(batch), "err", err)
		time.Sleep(w.retryWait)
		err = w.insert(ctx, batch)
		if err != nil {
			w.log.Error("write permanently failed", "batch", len(batch), "err", err)
			metrics.DBWriteFailures.WithLabelValues(w.table).Add(float64(len(batch)))
			return
		}
	}
	metrics.DBWriteSuccess.WithLabelValues(w.table).Add(float64(len(batch)))
}
