package pipeline

import (
	"context"
	"log/slog"
	"time"

	"fleet-monitor/detector/internal/detect"
	"fleet-monitor/detector/internal/domain"
	"fleet-monitor/detector/internal/metrics"
	"fleet-monitor/detector/internal/state"
)

type DeviceStore interface {
	GetDevice(ctx context.Context, id int64) (domain.Device, bool, error)
	UpdateDeviceFields(ctx context.Context, u *domain.DeviceUpdate) error
}

type StateLoader interface {
	LoadState(ctx context.Context, deviceID int64) (*domain.Position, domain.DebounceState, error)
}

// Worker analyzes the reports routed to one dispatcher channel. Every
// device maps to exactly one worker, so loadedAt needs no lock.
type Worker struct {
	ch      <-chan *domain.Position
	engine  *detect.Engine
	cache   *state.Cache
	devices DeviceStore
	states  StateLoader
	sinks   *Sinks
	log     *slog.Logger

	// refresh is how old a cached device record may get before it is
	// re-read. Zero disables re-reading.
	refresh  time.Duration
	loadedAt map[int64]time.Time
	now      func() time.Time
}

func NewWorker(
	ch <-chan *domain.Position,
	engine *detect.Engine,
	cache *state.Cache,
	devices DeviceStore,
	states StateLoader,
	sinks *Sinks,
	refresh time.Duration,
	log *slog.Logger,
) *Worker {
	return &Worker{
		ch:       ch,
		engine:   engine,
		cache:    cache,
		devices:  devices,
		states:   states,
		sinks:    sinks,
		log:      log.With("component", "worker"),
		refresh:  refresh,
		loadedAt: make(map[int64]time.Time),
		now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case p, ok := <-w.ch:
			if !ok {
				return
			}
			w.process(ctx, p)

		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, p *domain.Position) {
	if !w.cache.Known(p.DeviceID) {
		w.warm(ctx, p.DeviceID)
	} else if w.refresh > 0 && w.now().Sub(w.loadedAt[p.DeviceID]) >= w.refresh {
		w.reload(ctx, p.DeviceID)
	}

	start := time.Now()
	res := w.engine.Process(p)
	metrics.ObserveProcessLatency(start)

	for _, name := range res.Faults {
		metrics.AnalyzerFaults.WithLabelValues(name).Inc()
	}
	if res.Skip != detect.SkipNone {
		metrics.ReportsSkipped.WithLabelValues(res.Skip.String()).Inc()
		if res.Backfill {
			w.sinks.Position(p)
		}
		return
	}
	metrics.ReportsProcessed.Inc()

	w.sinks.Position(p)
	for _, e := range res.Events {
		metrics.EventsEmitted.WithLabelValues(string(e.Type)).Inc()
		w.sinks.Event(e)
	}
	w.sinks.State(StateUpdate{Position: p, Debounce: res.Debounce})

	if res.Update != nil {
		uctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := w.devices.UpdateDeviceFields(uctx, res.Update); err != nil {
			metrics.DeviceUpdateFailures.Inc()
			w.log.Error("update device motion failed", "device_id", p.DeviceID, "err", err)
		}
	}
}

// warm loads a device's record and persisted state into the cache. Failures
// leave the device unknown; the engine then skips the report.
func (w *Worker) warm(ctx context.Context, deviceID int64) {
	log := w.log.With("device_id", deviceID)

	dev, found, err := w.devices.GetDevice(ctx, deviceID)
	if err != nil {
		log.Error("load device failed", "err", err)
		return
	}
	if !found {
		return
	}

	last, debounce, err := w.states.LoadState(ctx, deviceID)
	if err != nil {
		log.Warn("load cached state failed, starting fresh", "err", err)
		last, debounce = nil, domain.DebounceState{}
	}

	w.cache.PutDevice(dev)
	w.loadedAt[deviceID] = w.now()
	w.cache.SetDebounce(deviceID, debounce)
	if last != nil {
		w.cache.SetLastPosition(last)
	}
}

// reload re-reads a cached device record so threshold and trip settings
// changed in the store take effect. Motion and debounce state are kept.
func (w *Worker) reload(ctx context.Context, deviceID int64) {
	w.loadedAt[deviceID] = w.now()

	dev, found, err := w.devices.GetDevice(ctx, deviceID)
	switch {
	case err != nil:
		w.log.Warn("reload device failed, keeping cached record", "device_id", deviceID, "err", err)
	case !found:
		w.log.Warn("device no longer in store, keeping cached record", "device_id", deviceID)
	default:
		w.cache.RefreshDevice(dev)
	}
}
