package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleet-monitor/detector/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

// track builds positions with the given motion flags at the given minute
// offsets from t0.
func track(motion []bool, minutes []int) []domain.Position {
	out := make([]domain.Position, len(motion))
	for i := range motion {
		out[i] = domain.Position{
			DeviceID: 1,
			FixTime:  t0.Add(time.Duration(minutes[i]) * time.Minute),
			Motion:   motion[i],
		}
	}
	return out
}

func TestIgnitionOn(t *testing.T) {
	tests := map[string]struct {
		positions []domain.Position
		expected  string
	}{
		"first of pair decides": {
			positions: track([]bool{true, true, false, true}, []int{0, 1, 2, 3}),
			expected:  "00:02:00",
		},
		"empty": {
			positions: nil,
			expected:  "00:00:00",
		},
		"single": {
			positions: track([]bool{true}, []int{0}),
			expected:  "00:00:00",
		},
		"beyond a day": {
			positions: track([]bool{true, false}, []int{0, 25*60 + 1}),
			expected:  "25:01:00",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, FormatClock(IgnitionOn(test.positions)))
		})
	}
}

func TestIgnitionOff(t *testing.T) {
	tests := map[string]struct {
		positions []domain.Position
		threshold int64
		expected  []OffInterval
	}{
		"run ended by motion": {
			positions: track([]bool{true, false, false, false, true}, []int{0, 5, 20, 35, 50}),
			threshold: 30,
			expected:  []OffInterval{{Start: t0.Add(5 * time.Minute), Minutes: 45}},
		},
		"run ended by sequence": {
			positions: track([]bool{false, false, false, false}, []int{0, 15, 30, 45}),
			threshold: 30,
			expected:  []OffInterval{{Start: t0, Minutes: 45}},
		},
		"short run": {
			positions: track([]bool{false, false, true}, []int{0, 5, 10}),
			threshold: 30,
			expected:  nil,
		},
		"threshold is exclusive": {
			positions: track([]bool{false, true}, []int{0, 30}),
			threshold: 30,
			expected:  nil,
		},
		"partial minutes are dropped": {
			positions: []domain.Position{
				{FixTime: t0},
				{FixTime: t0.Add(31*time.Minute + 59*time.Second), Motion: true},
			},
			threshold: 30,
			expected:  []OffInterval{{Start: t0, Minutes: 31}},
		},
		"two runs": {
			positions: track([]bool{false, true, false, true}, []int{0, 40, 50, 100}),
			threshold: 30,
			expected: []OffInterval{
				{Start: t0, Minutes: 40},
				{Start: t0.Add(50 * time.Minute), Minutes: 50},
			},
		},
		"empty": {
			positions: nil,
			threshold: 0,
			expected:  nil,
		},
		"single": {
			positions: track([]bool{false}, []int{0}),
			threshold: 0,
			expected:  nil,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, IgnitionOff(test.positions, test.threshold))
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(-time.Second))
	assert.Equal(t, "01:01:01", FormatClock(time.Hour+time.Minute+time.Second+500*time.Millisecond))
}
