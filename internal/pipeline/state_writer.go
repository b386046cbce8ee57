package pipeline

import (
	"context"
	"log/slog"
	"time"
)

type StateSaver interface {
	SaveState(ctx context.Context, u StateUpdate) error
}

// StateWriter mirrors the latest per-device state into Redis. Within a batch
// only the newest update per device is written.
type StateWriter struct {
	ch    <-chan StateUpdate
	saver StateSaver
	log   *slog.Logger
}

func NewStateWriter(ch <-chan StateUpdate, saver StateSaver, log *slog.Logger) *StateWriter {
	return &StateWriter{ch: ch, saver: saver, log: log.With("component", "state_writer")}
}

func (w *StateWriter) Run(ctx context.Context) {
	batch := make([]StateUpdate, 0, 100)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-w.ch:
			if !ok {
				w.flushBatch(context.WithoutCancel(ctx), batch)
				return
			}
			batch = append(batch, u)
			if len(batch) >= 100 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushBatch(context.WithoutCancel(ctx), batch)
			return
		}
	}
}

func (w *StateWriter) flushBatch(ctx context.Context, batch []StateUpdate) {
	for _, u := range latestPerDevice(batch) {
		if err := w.saver.SaveState(ctx, u); err != nil {
			w.log.Error("redis state update failed", "device_id", u.Position.DeviceID, "err", err)
		}
	}
}

func latestPerDevice(batch []StateUpdate) []StateUpdate {
	index := make(map[int64]int, len(batch))
	out := make([]StateUpdate, 0, len(batch))
	for _, u := range batch {
		id := u.Position.DeviceID
		if i, ok := index[id]; ok {
			out[i] = u
			continue
		}
		index[id] = len(out)
		out = append(out, u)
	}
	return out
}

type StateSaverFunc func(ctx context.Context, u StateUpdate) error

func (f StateSaverFunc) SaveState(ctx context.Context, u StateUpdate) error {
	return f(ctx, u)
}
