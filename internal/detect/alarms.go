package detect

import (
	"fmt"

	"fleet-monitor/detector/internal/domain"
)

const lowBatteryThreshold = 15

// input is everything one analyzer may look at for a single report.
type input struct {
	position *domain.Position
	device   *domain.Device
	last     *domain.Position
	debounce *domain.DebounceState
}

func checkSpeed(in input) ([]domain.Event, error) {
	kph := domain.KphFromKnots(in.position.Speed)
	if kph <= in.device.SpeedLimit() {
		return nil, nil
	}
	e := domain.NewEvent(domain.EventOverspeed, in.position,
		fmt.Sprintf("device %s exceeded the speed limit: %.2f km/h", in.device.Name, kph))
	e.Attributes[domain.AttrSpeed] = kph
	return []domain.Event{e}, nil
}

func checkSlope(in input) ([]domain.Event, error) {
	slope, ok, err := in.position.Attributes.Float(domain.KeySlope)
	if err != nil || !ok {
		return nil, err
	}
	limit := in.device.SlopeLimit()
	if slope <= limit {
		return nil, nil
	}
	e := domain.NewEvent(domain.EventSlopeAlarm, in.position,
		fmt.Sprintf("device %s slope %.1f exceeds the limit of %.0f", in.device.Name, slope, limit))
	e.Attributes[domain.AttrAlarm] = domain.AlarmSlope
	return []domain.Event{e}, nil
}

// checkBattery fires once when the level drops below the threshold and
// re-arms only after a sample at or above it.
func checkBattery(in input) ([]domain.Event, error) {
	level, ok, err := in.position.Attributes.Float(domain.KeyBatteryLevel)
	if err != nil || !ok {
		return nil, err
	}
	if level >= lowBatteryThreshold {
		in.debounce.BatteryLow = false
		return nil, nil
	}
	if in.debounce.BatteryLow {
		return nil, nil
	}
	in.debounce.BatteryLow = true
	return []domain.Event{domain.NewAlarm(domain.AlarmLowBattery, in.position,
		fmt.Sprintf("device %s battery is low (%.0f%%)", in.device.Name, level))}, nil
}

func checkDigitalInput(in input) ([]domain.Event, error) {
	return checkPin(in, domain.KeyDigitalInput, &in.debounce.DigitalInput, domain.EventDigitalInput, "input")
}

func checkDigitalOutput(in input) ([]domain.Event, error) {
	return checkPin(in, domain.KeyDigitalOutput, &in.debounce.DigitalOutput, domain.EventDigitalOutput, "output")
}

// checkPin emits when the pin differs from the last value seen for this
// device. The first observation only records the value.
func checkPin(in input, key string, stored **bool, t domain.EventType, label string) ([]domain.Event, error) {
	value, ok, err := in.position.Attributes.Bool(key)
	if err != nil || !ok {
		return nil, err
	}
	prev := *stored
	*stored = &value
	if prev == nil || *prev == value {
		return nil, nil
	}
	e := domain.NewEvent(t, in.position,
		fmt.Sprintf("device %s digital %s turned %s", in.device.Name, label, onOff(value)))
	e.Attributes[domain.AttrState] = value
	return []domain.Event{e}, nil
}

// checkJamming is level-triggered: it fires on every report while jamming
// is reported.
func checkJamming(in input) ([]domain.Event, error) {
	v, ok, err := in.position.Attributes.Int(domain.KeyJamming)
	if err != nil || !ok || v != 1 {
		return nil, err
	}
	return []domain.Event{domain.NewAlarm(domain.AlarmJamming, in.position,
		fmt.Sprintf("device %s reports GSM jamming", in.device.Name))}, nil
}

func checkTow(in input) ([]domain.Event, error) {
	return checkLatch(in, domain.KeyTowing, &in.debounce.Towing, domain.AlarmTow,
		fmt.Sprintf("device %s is being towed", in.device.Name))
}

func checkPowerCut(in input) ([]domain.Event, error) {
	return checkLatch(in, domain.KeyPowerUnplug, &in.debounce.PowerCut, domain.AlarmPowerCut,
		fmt.Sprintf("device %s external power was cut", in.device.Name))
}

// checkLatch fires when the attribute becomes 1 and re-arms when it reports
// 0. Other values leave the latch alone.
func checkLatch(in input, key string, latched *bool, alarm, message string) ([]domain.Event, error) {
	v, ok, err := in.position.Attributes.Int(key)
	if err != nil || !ok {
		return nil, err
	}
	switch {
	case v == 0:
		*latched = false
	case v == 1 && !*latched:
		*latched = true
		return []domain.Event{domain.NewAlarm(alarm, in.position, message)}, nil
	}
	return nil, nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
