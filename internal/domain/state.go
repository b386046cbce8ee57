package domain

import "time"

// DebounceState is the per-device memory of edge-triggered alarms. It must
// only ever be addressed through its device id.
type DebounceState struct {
	BatteryLow    bool  `json:"batteryLow"`
	Towing        bool  `json:"towing"`
	PowerCut      bool  `json:"powerCut"`
	DigitalInput  *bool `json:"digitalInput,omitempty"`
	DigitalOutput *bool `json:"digitalOutput,omitempty"`
}

// MotionState tracks the confirmed motion tag of one device together with
// the current run of reports sharing the same raw motion flag.
//
// Streak, Time and Distance describe the run: its length in reports, the
// fix time of its first report and the distance covered since then.
type MotionState struct {
	State    MotionTag
	Streak   int
	Time     time.Time
	Distance float64

	// RunMoving is the raw motion flag of the current run. It is not
	// persisted; runs restored from a device record match the confirmed tag.
	RunMoving bool
}

func MotionFromDevice(d *Device) *MotionState {
	tag := d.MotionState
	if tag != MotionMoving {
		tag = MotionStopped
	}
	return &MotionState{
		State:     tag,
		Streak:    d.MotionStreak,
		Time:      d.MotionTime,
		Distance:  d.MotionDistance,
		RunMoving: tag == MotionMoving,
	}
}

func (m *MotionState) Moving() bool {
	return m.State == MotionMoving
}

// ToDevice copies the persisted motion fields onto d and returns the update
// naming them.
func (m *MotionState) ToDevice(d *Device) *DeviceUpdate {
	d.MotionStreak = m.Streak
	d.MotionState = m.State
	d.MotionTime = m.Time
	d.MotionDistance = m.Distance
	return &DeviceUpdate{
		DeviceID: d.ID,
		Fields:   MotionFields,
		Values: map[string]any{
			FieldMotionStreak:   m.Streak,
			FieldMotionState:    string(m.State),
			FieldMotionTime:     m.Time,
			FieldMotionDistance: m.Distance,
		},
	}
}
