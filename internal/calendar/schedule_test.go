package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"too few fields":  "* * * *",
		"too many fields": "* * * * * *",
		"bad value":       "x * * * *",
		"out of range":    "60 * * * *",
		"inverted range":  "* 17-9 * * *",
		"zero step":       "*/0 * * * *",
		"bad step":        "*/x * * * *",
		"day of week 7":   "* * * * 7",
		"interval":        "@every 1h",
	}
	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(expr)
			assert.Error(t, err)
		})
	}
}

func TestScheduleContains(t *testing.T) {
	// Monday 2024-03-04.
	monday := func(hour, minute int) time.Time {
		return time.Date(2024, 3, 4, hour, minute, 30, 0, time.UTC)
	}

	tests := map[string]struct {
		expr     string
		at       time.Time
		expected bool
	}{
		"every minute":        {expr: "* * * * *", at: monday(3, 17), expected: true},
		"office hours inside": {expr: "* 9-17 * * 1-5", at: monday(9, 0), expected: true},
		"office hours edge":   {expr: "* 9-17 * * 1-5", at: monday(17, 59), expected: true},
		"office hours after":  {expr: "* 9-17 * * 1-5", at: monday(18, 0), expected: false},
		"weekend only":        {expr: "* * * * 0,6", at: monday(12, 0), expected: false},
		"stepped minutes":     {expr: "*/15 * * * *", at: monday(12, 45), expected: true},
		"stepped miss":        {expr: "*/15 * * * *", at: monday(12, 46), expected: false},
		"month mismatch":      {expr: "* * * 4 *", at: monday(12, 0), expected: false},
		"day of month":        {expr: "* * 4 3 *", at: monday(12, 0), expected: true},
		"weekday names":       {expr: "* * * * MON-FRI", at: monday(12, 0), expected: true},
		"daily descriptor":    {expr: "@daily", at: monday(0, 0), expected: true},
		"either day field":    {expr: "* * 1 * 1", at: monday(12, 0), expected: true},
		"either day via dom":  {expr: "* * 4 * 0", at: monday(12, 0), expected: true},
		"neither day field":   {expr: "* * 1 * 2", at: monday(12, 0), expected: false},
		"stepped day of week": {expr: "* * 1 * */2", at: monday(12, 0), expected: false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := Parse(test.expr)
			require.NoError(t, err)
			assert.Equal(t, test.expected, s.Contains(test.at))
		})
	}
}

func TestScheduleTimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	s, err := ParseIn("* 9 * * *", loc)
	require.NoError(t, err)

	assert.True(t, s.Contains(time.Date(2024, 3, 4, 6, 30, 0, 0, time.UTC)))
	assert.False(t, s.Contains(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)))
}

func TestScheduleZonePrefixWins(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	s, err := ParseIn("CRON_TZ=UTC * 9 * * *", loc)
	require.NoError(t, err)

	assert.True(t, s.Contains(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)))
	assert.False(t, s.Contains(time.Date(2024, 3, 4, 6, 30, 0, 0, time.UTC)))
}

func TestZeroScheduleContainsNothing(t *testing.T) {
	assert.False(t, Schedule{}.Contains(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)))
}

func TestRegistryCheckMoment(t *testing.T) {
	r := NewRegistry()
	never, err := Parse("* * 31 2 *")
	require.NoError(t, err)
	r.Put(1, never)

	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	assert.False(t, r.CheckMoment(1, at))
	assert.True(t, r.CheckMoment(2, at), "unknown calendars do not restrict")

	r.Replace(map[int64]Schedule{})
	assert.True(t, r.CheckMoment(1, at))
}
