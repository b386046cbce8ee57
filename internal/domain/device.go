package domain

import "time"

const (
	DefaultSpeedLimit = 200.0
	DefaultSlopeLimit = 360.0
)

// Device attribute keys holding per-device thresholds.
const (
	AttrSpeedLimit             = "speedLimit"
	AttrSlopeLimit             = "slopeLimit"
	AttrMinimalStreak          = "minimalStreak"
	AttrMinimalTripDuration    = "minimalTripDuration"
	AttrMinimalTripDistance    = "minimalTripDistance"
	AttrMinimalParkingDuration = "minimalParkingDuration"
	AttrUseIgnition            = "useIgnition"
)

// Persisted motion columns on the devices table.
const (
	FieldMotionStreak   = "motion_streak"
	FieldMotionState    = "motion_state"
	FieldMotionTime     = "motion_time"
	FieldMotionDistance = "motion_distance"
)

var MotionFields = []string{FieldMotionStreak, FieldMotionState, FieldMotionTime, FieldMotionDistance}

type MotionTag string

const (
	MotionStopped MotionTag = "stopped"
	MotionMoving  MotionTag = "moving"
)

type Device struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	UniqueID   string     `json:"uniqueId"`
	Attributes Attributes `json:"attributes,omitempty"`

	MotionStreak   int       `json:"motionStreak"`
	MotionState    MotionTag `json:"motionState"`
	MotionTime     time.Time `json:"motionTime"`
	MotionDistance float64   `json:"motionDistance"`
}

func (d *Device) SpeedLimit() float64 {
	return d.Attributes.FloatOr(AttrSpeedLimit, DefaultSpeedLimit)
}

func (d *Device) SlopeLimit() float64 {
	return d.Attributes.FloatOr(AttrSlopeLimit, DefaultSlopeLimit)
}

// DeviceUpdate names the device columns to write back and carries their values.
type DeviceUpdate struct {
	DeviceID int64
	Fields   []string
	Values   map[string]any
}

type Geofence struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CalendarID int64  `json:"calendarId"`
}

// TripConfig governs how raw motion flags are debounced into confirmed
// moving/stopped transitions.
type TripConfig struct {
	MinimalStreak          int
	MinimalTripDuration    time.Duration
	MinimalTripDistance    float64 // meters
	MinimalParkingDuration time.Duration
	UseIgnition            bool
}

var DefaultTripConfig = TripConfig{
	MinimalStreak:          2,
	MinimalTripDuration:    5 * time.Minute,
	MinimalTripDistance:    500,
	MinimalParkingDuration: 5 * time.Minute,
	UseIgnition:            false,
}

// ForDevice overlays the device's own attributes on c.
func (c TripConfig) ForDevice(d *Device) TripConfig {
	out := c
	a := d.Attributes
	if v, ok, err := a.Int(AttrMinimalStreak); ok && err == nil && v > 0 {
		out.MinimalStreak = int(v)
	}
	if v, ok, err := a.Float(AttrMinimalTripDuration); ok && err == nil {
		out.MinimalTripDuration = time.Duration(v * float64(time.Second))
	}
	if v, ok, err := a.Float(AttrMinimalTripDistance); ok && err == nil {
		out.MinimalTripDistance = v
	}
	if v, ok, err := a.Float(AttrMinimalParkingDuration); ok && err == nil {
		out.MinimalParkingDuration = time.Duration(v * float64(time.Second))
	}
	out.UseIgnition = a.BoolOr(AttrUseIgnition, out.UseIgnition)
	return out
}
