package pipeline

import (
	"context"

	"fleet-monitor/detector/internal/domain"
	"fleet-monitor/detector/internal/metrics"
)

// Dispatcher routes every report of a device to the same worker channel, so
// one device's reports are analyzed in arrival order by a single goroutine.
type Dispatcher struct {
	workers []chan *domain.Position
}

func NewDispatcher(workers, size int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{workers: make([]chan *domain.Position, workers)}
	for i := range d.workers {
		d.workers[i] = make(chan *domain.Position, size)
	}
	return d
}

func (d *Dispatcher) route(deviceID int64) int {
	return int(uint64(deviceID) % uint64(len(d.workers)))
}

// Worker returns the receive side of worker channel i.
func (d *Dispatcher) Worker(i int) <-chan *domain.Position {
	return d.workers[i]
}

func (d *Dispatcher) Workers() int {
	return len(d.workers)
}

// Dispatch blocks until the report is queued or ctx is done. Reports are
// never dropped here; dropping would reorder a device's stream.
func (d *Dispatcher) Dispatch(ctx context.Context, p *domain.Position) error {
	select {
	case d.workers[d.route(p.DeviceID)] <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes every worker channel. Dispatch must not be called afterwards.
func (d *Dispatcher) Close() {
	for _, ch := range d.workers {
		close(ch)
	}
}

// StateUpdate is the device state to mirror into Redis after a report.
type StateUpdate struct {
	Position *domain.Position
	Debounce domain.DebounceState
}

// Sinks fans analysis output out to the writers. Sends never block: a full
// channel drops the item and counts it.
type Sinks struct {
	PositionChan  chan *domain.Position
	EventChan     chan domain.Event
	BroadcastChan chan domain.Event
	StateChan     chan StateUpdate
}

func NewSinks(positionSize, eventSize, stateSize int) *Sinks {
	return &Sinks{
		PositionChan:  make(chan *domain.Position, positionSize),
		EventChan:     make(chan domain.Event, eventSize),
		BroadcastChan: make(chan domain.Event, eventSize),
		StateChan:     make(chan StateUpdate, stateSize),
	}
}

func (s *Sinks) Position(p *domain.Position) {
	select {
	case s.PositionChan <- p:
	default:
		metrics.ChannelDrops.WithLabelValues("positions").Inc()
	}
}

func (s *Sinks) Event(e domain.Event) {
	select {
	case s.EventChan <- e:
	default:
		metrics.ChannelDrops.WithLabelValues("events").Inc()
	}

	select {
	case s.BroadcastChan <- e:
	default:
		metrics.ChannelDrops.WithLabelValues("broadcast").Inc()
	}
}

func (s *Sinks) State(u StateUpdate) {
	select {
	case s.StateChan <- u:
	default:
		metrics.ChannelDrops.WithLabelValues("state").Inc()
	}
}

// Close closes every sink channel once no worker will send again.
func (s *Sinks) Close() {
	close(s.PositionChan)
	close(s.EventChan)
	close(s.BroadcastChan)
	close(s.StateChan)
}
