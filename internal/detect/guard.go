package detect

import "fleet-monitor/detector/internal/domain"

// PositionSource returns the last accepted position of a device.
type PositionSource interface {
	LastPosition(deviceID int64) (*domain.Position, bool)
}

// IsLatest reports whether p is newer than anything the store already holds
// for its device. Duplicates and out-of-order reports are not latest.
func IsLatest(store PositionSource, p *domain.Position) bool {
	last, _ := store.LastPosition(p.DeviceID)
	return isAfter(p, last)
}

func isAfter(p, last *domain.Position) bool {
	return last == nil || p.FixTime.After(last.FixTime)
}
