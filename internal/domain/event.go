package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAlarm         EventType = "alarm"
	EventGeofenceEnter EventType = "geofenceEnter"
	EventGeofenceExit  EventType = "geofenceExit"
	EventOverspeed     EventType = "deviceOverspeed"
	EventDigitalInput  EventType = "digitalInput"
	EventDigitalOutput EventType = "digitalOutput"
	EventSlopeAlarm    EventType = "slopeAlarm"
	EventDeviceMoving  EventType = "deviceMoving"
	EventDeviceStopped EventType = "deviceStopped"
)

// Alarm sub-kinds carried under AttrAlarm.
const (
	AlarmLowBattery = "lowBattery"
	AlarmJamming    = "jamming"
	AlarmTow        = "tow"
	AlarmPowerCut   = "powerCut"
	AlarmSlope      = "slope"
)

const (
	AttrAlarm   = "alarm"
	AttrMessage = "message"
	AttrSpeed   = "speed"
	AttrState   = "state"
)

// Event is a detected domain event. ID is generated at detection so that a
// re-delivered event can be persisted idempotently.
type Event struct {
	ID         string     `json:"id"`
	Type       EventType  `json:"type"`
	DeviceID   int64      `json:"deviceId"`
	EventTime  time.Time  `json:"eventTime"`
	PositionID int64      `json:"positionId,omitempty"`
	GeofenceID int64      `json:"geofenceId,omitempty"`
	Attributes Attributes `json:"attributes"`
}

func NewEvent(t EventType, p *Position, message string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		DeviceID:   p.DeviceID,
		EventTime:  p.FixTime,
		PositionID: p.ID,
		Attributes: Attributes{AttrMessage: message},
	}
}

func NewAlarm(kind string, p *Position, message string) Event {
	e := NewEvent(EventAlarm, p, message)
	e.Attributes[AttrAlarm] = kind
	return e
}

func (e Event) Alarm() string {
	s, _ := e.Attributes[AttrAlarm].(string)
	return s
}

func (e Event) Message() string {
	s, _ := e.Attributes[AttrMessage].(string)
	return s
}
