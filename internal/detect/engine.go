// Package detect derives domain events from a device's ordered stream of
// position reports.
package detect

import (
	"fmt"
	"log/slog"

	"fleet-monitor/detector/internal/domain"
	"fleet-monitor/detector/internal/state"
)

// Store gives exclusive, per-device access to cached device state.
type Store interface {
	Do(deviceID int64, fn func(e *state.Entry))
}

type Skip int

const (
	SkipNone Skip = iota
	SkipStale
	SkipUnknownDevice
)

func (s Skip) String() string {
	switch s {
	case SkipStale:
		return "stale"
	case SkipUnknownDevice:
		return "unknown_device"
	default:
		return "none"
	}
}

// Result is the outcome of analyzing one report.
type Result struct {
	Events []domain.Event

	// Update is non-nil only when the motion state flipped.
	Update *domain.DeviceUpdate

	// Debounce is the device's debounce state after analysis.
	Debounce domain.DebounceState

	// Faults names analyzers that failed on this report.
	Faults []string

	Skip Skip

	// Backfill is set on stale reports strictly older than the last accepted
	// one. Reports with an equal fix time are duplicates and leave it unset.
	Backfill bool
}

type analyzer struct {
	name string
	run  func(in input) ([]domain.Event, error)
}

// alarmAnalyzers run first, in this order, before geofence and motion.
var alarmAnalyzers = []analyzer{
	{"speed", checkSpeed},
	{"slope", checkSlope},
	{"battery", checkBattery},
	{"digital_input", checkDigitalInput},
	{"digital_output", checkDigitalOutput},
	{"jamming", checkJamming},
	{"tow", checkTow},
	{"power_cut", checkPowerCut},
}

type Engine struct {
	store     Store
	geofences GeofenceSource
	calendars CalendarChecker
	trips     domain.TripConfig
	log       *slog.Logger
}

func NewEngine(store Store, geofences GeofenceSource, calendars CalendarChecker, trips domain.TripConfig, log *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		geofences: geofences,
		calendars: calendars,
		trips:     trips,
		log:       log.With("component", "engine"),
	}
}

// Process analyzes p against its device's cached state and, when p is the
// latest report for the device, records it as the last position.
//
// Callers must not process two reports of the same device concurrently if
// they care about event order; the store serializes access but cannot
// reorder.
func (e *Engine) Process(p *domain.Position) Result {
	var res Result
	e.store.Do(p.DeviceID, func(entry *state.Entry) {
		log := e.log.With("device_id", p.DeviceID, "position_id", p.ID)
		if entry.Device == nil {
			log.Warn("unknown device, skipping report")
			res.Skip = SkipUnknownDevice
			return
		}
		if !isAfter(p, entry.Last) {
			log.Debug("stale report", "fix_time", p.FixTime, "last_fix_time", entry.Last.FixTime)
			res.Skip = SkipStale
			res.Backfill = p.FixTime.Before(entry.Last.FixTime)
			res.Debounce = entry.Debounce
			return
		}

		in := input{
			position: p,
			device:   entry.Device,
			last:     entry.Last,
			debounce: &entry.Debounce,
		}

		for _, a := range alarmAnalyzers {
			events, err := e.guarded(a.name, in, a.run)
			if err != nil {
				log.Warn("analyzer failed", "analyzer", a.name, "err", err)
				res.Faults = append(res.Faults, a.name)
				continue
			}
			res.Events = append(res.Events, events...)
		}

		events, err := e.guarded("geofence", in, func(in input) ([]domain.Event, error) {
			return checkGeofences(in, e.geofences, e.calendars), nil
		})
		if err != nil {
			log.Warn("analyzer failed", "analyzer", "geofence", "err", err)
			res.Faults = append(res.Faults, "geofence")
		}
		res.Events = append(res.Events, events...)

		if entry.Motion == nil {
			entry.Motion = domain.MotionFromDevice(entry.Device)
		}
		events, err = e.guarded("motion", in, func(in input) ([]domain.Event, error) {
			ev, update := updateMotion(in, entry.Motion, e.trips.ForDevice(in.device))
			res.Update = update
			if ev == nil {
				return nil, nil
			}
			return []domain.Event{*ev}, nil
		})
		if err != nil {
			log.Warn("analyzer failed", "analyzer", "motion", "err", err)
			res.Faults = append(res.Faults, "motion")
		}
		res.Events = append(res.Events, events...)

		entry.Last = p
		res.Debounce = entry.Debounce
	})
	return res
}

// guarded runs fn and turns a panic into an error so one analyzer cannot
// abort the others.
func (e *Engine) guarded(name string, in input, fn func(input) ([]domain.Event, error)) (events []domain.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events, err = nil, fmt.Errorf("%s analyzer panicked: %v", name, r)
		}
	}()
	return fn(in)
}
