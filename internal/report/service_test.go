package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/detector/internal/domain"
)

type window struct {
	from, to time.Time
}

// fakeHistory serves positions from memory and records every window asked for.
type fakeHistory struct {
	positions []domain.Position
	windows   []window
	err       error
}

func (f *fakeHistory) FetchPositions(_ context.Context, _ int64, from, to time.Time) ([]domain.Position, error) {
	f.windows = append(f.windows, window{from, to})
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Position
	for _, p := range f.positions {
		if !p.FixTime.Before(from) && p.FixTime.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestServiceIgnitionOn(t *testing.T) {
	h := &fakeHistory{positions: track([]bool{true, true, false}, []int{0, 90, 100})}
	s := NewService(h)

	got, err := s.IgnitionOn(context.Background(), 1, t0, t0.Add(24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, "01:40:00", got)
	assert.Len(t, h.windows, 1)
}

func TestServiceIgnitionOnDailyWindows(t *testing.T) {
	day := 24 * time.Hour
	h := &fakeHistory{positions: []domain.Position{
		{FixTime: t0, Motion: true},
		{FixTime: t0.Add(time.Hour)},
		{FixTime: t0.Add(day), Motion: true},
		{FixTime: t0.Add(day + 30*time.Minute)},
	}}
	s := NewService(h)

	got, err := s.IgnitionOnDaily(context.Background(), 1, t0, t0.Add(2*day))

	require.NoError(t, err)
	assert.Equal(t, []DailyIgnition{
		{Day: t0, Ignition: "01:00:00"},
		{Day: t0.Add(day), Ignition: "00:30:00"},
		{Day: t0.Add(2 * day), Ignition: "00:00:00"},
	}, got)
	require.Len(t, h.windows, 3)
	assert.Equal(t, window{t0.Add(day), t0.Add(2 * day)}, h.windows[1])
}

func TestServiceIgnitionOffSplitsAtDayBoundary(t *testing.T) {
	h := &fakeHistory{positions: track(
		[]bool{false, false, false, false},
		[]int{0, 60, 24 * 60, 24*60 + 45},
	)}
	s := NewService(h)

	got, err := s.IgnitionOff(context.Background(), 1, t0, t0.Add(24*time.Hour), 30)

	require.NoError(t, err)
	assert.Equal(t, []OffInterval{
		{Start: t0, Minutes: 60},
		{Start: t0.Add(24 * time.Hour), Minutes: 45},
	}, got)
}

func TestServiceIgnitionOffEmptyIsNotNil(t *testing.T) {
	s := NewService(&fakeHistory{})

	got, err := s.IgnitionOff(context.Background(), 1, t0, t0, 10)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestServicePropagatesHistoryErrors(t *testing.T) {
	boom := errors.New("db down")
	s := NewService(&fakeHistory{err: boom})

	_, err := s.IgnitionOn(context.Background(), 1, t0, t0)
	assert.ErrorIs(t, err, boom)
	_, err = s.IgnitionOnDaily(context.Background(), 1, t0, t0)
	assert.ErrorIs(t, err, boom)
	_, err = s.IgnitionOff(context.Background(), 1, t0, t0, 5)
	assert.ErrorIs(t, err, boom)
}

func TestServiceRejectsLongRanges(t *testing.T) {
	history := &fakeHistory{}
	s := NewService(history)
	ctx := context.Background()
	from := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

	_, err := s.IgnitionOn(ctx, 1, from, to)
	assert.ErrorIs(t, err, ErrRangeTooLong)
	_, err = s.IgnitionOnDaily(ctx, 1, from, to)
	assert.ErrorIs(t, err, ErrRangeTooLong)
	_, err = s.IgnitionOff(ctx, 1, from, to, 5)
	assert.ErrorIs(t, err, ErrRangeTooLong)
	assert.Empty(t, history.windows)

	days, err := s.IgnitionOnDaily(ctx, 1, t0, t0.Add(MaxRange))
	require.NoError(t, err)
	assert.Len(t, days, 367)
}
