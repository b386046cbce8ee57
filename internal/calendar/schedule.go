// Package calendar decides whether a moment falls inside a calendar's active
// schedule. A schedule is a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), optionally prefixed with
// CRON_TZ=<zone>, evaluated in the calendar's time zone. A moment is active
// when its minute matches the expression.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// starBit marks a field written as * or ?. Mirrors the parser's own flag.
const starBit = 1 << 63

type Schedule struct {
	spec *cron.SpecSchedule
}

// Parse parses expression in UTC.
func Parse(expression string) (Schedule, error) {
	return ParseIn(expression, time.UTC)
}

// ParseIn parses expression in loc. A CRON_TZ= or TZ= prefix in the
// expression takes precedence over loc.
func ParseIn(expression string, loc *time.Location) (Schedule, error) {
	parsed, err := cron.ParseStandard(expression)
	if err != nil {
		return Schedule{}, fmt.Errorf("calendar: %w", err)
	}
	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return Schedule{}, fmt.Errorf("calendar: %q is an interval, not a schedule", expression)
	}
	if !hasZonePrefix(expression) {
		if loc == nil {
			loc = time.UTC
		}
		spec.Location = loc
	}
	return Schedule{spec: spec}, nil
}

func hasZonePrefix(expression string) bool {
	expression = strings.TrimSpace(expression)
	return strings.HasPrefix(expression, "CRON_TZ=") || strings.HasPrefix(expression, "TZ=")
}

// Contains reports whether t falls in an active minute of the schedule.
func (s Schedule) Contains(t time.Time) bool {
	if s.spec == nil {
		return false
	}
	t = t.In(s.spec.Location)
	return has(s.spec.Month, int(t.Month())) &&
		s.dayMatches(t) &&
		has(s.spec.Hour, t.Hour()) &&
		has(s.spec.Minute, t.Minute())
}

// dayMatches applies the cron day rule: when both day fields are
// restricted, either one matching is enough.
func (s Schedule) dayMatches(t time.Time) bool {
	dom := has(s.spec.Dom, t.Day())
	dow := has(s.spec.Dow, int(t.Weekday()))
	if s.spec.Dom&starBit != 0 || s.spec.Dow&starBit != 0 {
		return dom && dow
	}
	return dom || dow
}

func has(bits uint64, v int) bool {
	return bits&(1<<uint(v)) != 0
}
