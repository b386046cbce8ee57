package domain

import "time"

// Sensor attribute keys. Numeric keys follow Teltonika FMxxx IO element ids.
const (
	KeyBatteryLevel  = "io113"
	KeyDigitalInput  = "io1"
	KeyDigitalOutput = "io179"
	KeyJamming       = "io249"
	KeyTowing        = "io246"
	KeyPowerUnplug   = "io252"
	KeySlope         = "slope"
	KeyIgnition      = "ignition"
	KeyTotalDistance = "totalDistance"
)

// Position is one decoded fix reported by a device. It is never mutated
// after decoding.
type Position struct {
	ID          int64      `json:"id"`
	DeviceID    int64      `json:"deviceId"`
	FixTime     time.Time  `json:"fixTime"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Speed       float64    `json:"speed"` // knots
	Motion      bool       `json:"motion"`
	GeofenceIDs []int64    `json:"geofenceIds,omitempty"`
	Attributes  Attributes `json:"attributes,omitempty"`
}

const knotsToKph = 1.852

func KphFromKnots(knots float64) float64 {
	return knots * knotsToKph
}
