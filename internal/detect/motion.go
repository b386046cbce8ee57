package detect

import (
	"fmt"

	"fleet-monitor/detector/internal/domain"
)

// updateMotion advances the device's motion state with one report. It
// returns an event and the device fields to persist only when the confirmed
// state flips.
func updateMotion(in input, state *domain.MotionState, cfg domain.TripConfig) (*domain.Event, *domain.DeviceUpdate) {
	p := in.position
	moving := p.Motion

	if state.Streak == 0 || moving != state.RunMoving {
		state.RunMoving = moving
		state.Streak = 1
		state.Time = p.FixTime
		state.Distance = 0
	} else {
		state.Streak++
		state.Distance += travelled(in.last, p)
	}

	if moving == state.Moving() || state.Streak < cfg.MinimalStreak {
		return nil, nil
	}

	elapsed := p.FixTime.Sub(state.Time)
	var confirmed bool
	if moving {
		confirmed = elapsed >= cfg.MinimalTripDuration || state.Distance >= cfg.MinimalTripDistance
	} else {
		confirmed = elapsed >= cfg.MinimalParkingDuration || ignitionOff(p, cfg)
	}
	if !confirmed {
		return nil, nil
	}

	t, verb := domain.EventDeviceStopped, "stopped"
	state.State = domain.MotionStopped
	if moving {
		t, verb = domain.EventDeviceMoving, "started moving"
		state.State = domain.MotionMoving
	}
	e := domain.NewEvent(t, p, fmt.Sprintf("device %s %s", in.device.Name, verb))
	return &e, state.ToDevice(in.device)
}

// travelled is the odometer delta between two consecutive reports. Missing,
// malformed or decreasing odometers count as no distance.
func travelled(last, p *domain.Position) float64 {
	if last == nil {
		return 0
	}
	prev, ok1, err1 := last.Attributes.Float(domain.KeyTotalDistance)
	cur, ok2, err2 := p.Attributes.Float(domain.KeyTotalDistance)
	if !ok1 || !ok2 || err1 != nil || err2 != nil || cur < prev {
		return 0
	}
	return cur - prev
}

func ignitionOff(p *domain.Position, cfg domain.TripConfig) bool {
	if !cfg.UseIgnition {
		return false
	}
	on, ok, err := p.Attributes.Bool(domain.KeyIgnition)
	return ok && err == nil && !on
}
