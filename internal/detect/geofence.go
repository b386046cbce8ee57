package detect

import (
	"fmt"
	"slices"
	"time"

	"fleet-monitor/detector/internal/domain"
)

type GeofenceSource interface {
	Geofence(id int64) (domain.Geofence, bool)
}

type CalendarChecker interface {
	CheckMoment(calendarID int64, t time.Time) bool
}

// checkGeofences diffs the report's geofence set against the previous
// position's. Exits are emitted before enters.
func checkGeofences(in input, geofences GeofenceSource, calendars CalendarChecker) []domain.Event {
	var before []int64
	if in.last != nil {
		before = idSet(in.last.GeofenceIDs)
	}
	now := idSet(in.position.GeofenceIDs)

	var events []domain.Event
	for _, id := range before {
		if slices.Contains(now, id) {
			continue
		}
		if e, ok := geofenceEvent(in, id, domain.EventGeofenceExit, "exited", geofences, calendars); ok {
			events = append(events, e)
		}
	}
	for _, id := range now {
		if slices.Contains(before, id) {
			continue
		}
		if e, ok := geofenceEvent(in, id, domain.EventGeofenceEnter, "entered", geofences, calendars); ok {
			events = append(events, e)
		}
	}
	return events
}

// idSet returns a sorted copy of ids without repeats.
func idSet(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func geofenceEvent(in input, id int64, t domain.EventType, verb string, geofences GeofenceSource, calendars CalendarChecker) (domain.Event, bool) {
	gf, ok := geofences.Geofence(id)
	if !ok {
		return domain.Event{}, false
	}
	if gf.CalendarID != 0 && calendars != nil && !calendars.CheckMoment(gf.CalendarID, in.position.FixTime) {
		return domain.Event{}, false
	}
	e := domain.NewEvent(t, in.position, fmt.Sprintf("device %s %s geofence %s", in.device.Name, verb, gf.Name))
	e.GeofenceID = id
	return e, true
}
