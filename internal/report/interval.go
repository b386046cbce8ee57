// Package report computes ignition summaries over a device's position
// history.
package report

import (
	"fmt"
	"time"

	"fleet-monitor/detector/internal/domain"
)

// OffInterval is a motionless stretch that started at Start and lasted
// Minutes whole minutes.
type OffInterval struct {
	Start   time.Time `json:"deviceTime"`
	Minutes int64     `json:"timeOff"`
}

// IgnitionOn sums the gap to the next report for every report with motion
// set. positions must be ordered by fix time.
func IgnitionOn(positions []domain.Position) time.Duration {
	var total time.Duration
	for i := 0; i+1 < len(positions); i++ {
		if positions[i].Motion {
			total += positions[i+1].FixTime.Sub(positions[i].FixTime)
		}
	}
	return total
}

// IgnitionOff returns every run of motionless reports longer than
// thresholdMinutes. A run is measured from its first report to the report
// that ends it, or to the last report of the sequence.
func IgnitionOff(positions []domain.Position, thresholdMinutes int64) []OffInterval {
	var out []OffInterval
	for i := 0; i+1 < len(positions); i++ {
		if positions[i].Motion {
			continue
		}
		start := positions[i].FixTime
		var total time.Duration
		for i+1 < len(positions) && !positions[i].Motion {
			total += positions[i+1].FixTime.Sub(positions[i].FixTime)
			i++
		}
		if minutes := int64(total / time.Minute); minutes > thresholdMinutes {
			out = append(out, OffInterval{Start: start, Minutes: minutes})
		}
	}
	return out
}

// FormatClock renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
