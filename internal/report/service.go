package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-monitor/detector/internal/domain"
)

// History fetches a device's positions with from <= fix time < to, ordered
// by fix time.
type History interface {
	FetchPositions(ctx context.Context, deviceID int64, from, to time.Time) ([]domain.Position, error)
}

// MaxRange is the longest window a report may cover.
const MaxRange = 366 * 24 * time.Hour

var ErrRangeTooLong = errors.New("report range longer than 366 days")

func checkRange(from, to time.Time) error {
	if to.Sub(from) > MaxRange {
		return ErrRangeTooLong
	}
	return nil
}

type DailyIgnition struct {
	Day      time.Time `json:"deviceTime"`
	Ignition string    `json:"ignition"`
}

type Service struct {
	history History
}

func NewService(h History) *Service {
	return &Service{history: h}
}

func (s *Service) IgnitionOn(ctx context.Context, deviceID int64, from, to time.Time) (string, error) {
	if err := checkRange(from, to); err != nil {
		return "", err
	}
	positions, err := s.history.FetchPositions(ctx, deviceID, from, to)
	if err != nil {
		return "", fmt.Errorf("fetch positions for device %d: %w", deviceID, err)
	}
	return FormatClock(IgnitionOn(positions)), nil
}

// IgnitionOnDaily reports ignition-on time for each one-day window starting
// at from, for as long as the window start is not after to.
func (s *Service) IgnitionOnDaily(ctx context.Context, deviceID int64, from, to time.Time) ([]DailyIgnition, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	var out []DailyIgnition
	err := eachDay(from, to, func(day, next time.Time) error {
		positions, err := s.history.FetchPositions(ctx, deviceID, day, next)
		if err != nil {
			return fmt.Errorf("fetch positions for device %d on %s: %w", deviceID, day.Format(time.DateOnly), err)
		}
		out = append(out, DailyIgnition{Day: day, Ignition: FormatClock(IgnitionOn(positions))})
		return nil
	})
	return out, err
}

// IgnitionOff evaluates each day window separately and concatenates the
// intervals, so a stop spanning midnight is split at the day boundary.
func (s *Service) IgnitionOff(ctx context.Context, deviceID int64, from, to time.Time, thresholdMinutes int64) ([]OffInterval, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	out := []OffInterval{}
	err := eachDay(from, to, func(day, next time.Time) error {
		positions, err := s.history.FetchPositions(ctx, deviceID, day, next)
		if err != nil {
			return fmt.Errorf("fetch positions for device %d on %s: %w", deviceID, day.Format(time.DateOnly), err)
		}
		out = append(out, IgnitionOff(positions, thresholdMinutes)...)
		return nil
	})
	return out, err
}

func eachDay(from, to time.Time, fn func(day, next time.Time) error) error {
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := fn(day, day.AddDate(0, 0, 1)); err != nil {
			return err
		}
	}
	return nil
}
