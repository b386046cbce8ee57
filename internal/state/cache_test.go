package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/detector/internal/domain"
)

func TestCacheDeviceIsCopied(t *testing.T) {
	c := NewCache()
	assert.False(t, c.Known(1))

	c.PutDevice(domain.Device{ID: 1, Name: "van"})
	require.True(t, c.Known(1))

	d, ok := c.Device(1)
	require.True(t, ok)
	d.Name = "changed"

	again, _ := c.Device(1)
	assert.Equal(t, "van", again.Name)

	_, ok = c.Device(2)
	assert.False(t, ok)
}

func TestCachePutDeviceResetsMotion(t *testing.T) {
	c := NewCache()
	c.PutDevice(domain.Device{ID: 1})
	c.Do(1, func(e *Entry) {
		e.Motion = &domain.MotionState{State: domain.MotionMoving, Streak: 4}
	})
	_, ok := c.Motion(1)
	require.True(t, ok)

	c.PutDevice(domain.Device{ID: 1})
	_, ok = c.Motion(1)
	assert.False(t, ok)
}

func TestCacheRefreshDeviceKeepsMotion(t *testing.T) {
	c := NewCache()
	assert.False(t, c.RefreshDevice(domain.Device{ID: 1, Name: "van"}))
	assert.False(t, c.Known(1))

	c.PutDevice(domain.Device{ID: 1, Name: "van", MotionState: domain.MotionStopped})
	c.Do(1, func(e *Entry) {
		e.Motion = &domain.MotionState{State: domain.MotionStopped, Streak: 1, RunMoving: true}
	})

	require.True(t, c.RefreshDevice(domain.Device{
		ID:          1,
		Name:        "van 2",
		Attributes:  domain.Attributes{domain.AttrSpeedLimit: 50.0},
		MotionState: domain.MotionMoving,
	}))

	d, ok := c.Device(1)
	require.True(t, ok)
	assert.Equal(t, "van 2", d.Name)
	assert.Equal(t, 50.0, d.SpeedLimit())
	assert.Equal(t, domain.MotionStopped, d.MotionState)

	m, ok := c.Motion(1)
	require.True(t, ok)
	assert.Equal(t, 1, m.Streak)
	assert.True(t, m.RunMoving)
}

func TestCacheSetLastPositionKeepsNewest(t *testing.T) {
	c := NewCache()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, c.SetLastPosition(&domain.Position{ID: 1, DeviceID: 7, FixTime: t0}))
	assert.False(t, c.SetLastPosition(&domain.Position{ID: 2, DeviceID: 7, FixTime: t0}))
	assert.False(t, c.SetLastPosition(&domain.Position{ID: 3, DeviceID: 7, FixTime: t0.Add(-time.Second)}))
	assert.True(t, c.SetLastPosition(&domain.Position{ID: 4, DeviceID: 7, FixTime: t0.Add(time.Second)}))

	last, ok := c.LastPosition(7)
	require.True(t, ok)
	assert.Equal(t, int64(4), last.ID)
}

func TestCacheDebounceIsPerDevice(t *testing.T) {
	c := NewCache()
	c.SetDebounce(1, domain.DebounceState{Towing: true})

	assert.True(t, c.Debounce(1).Towing)
	assert.False(t, c.Debounce(2).Towing)
	// Device 1 + shardCount lands in the same shard.
	assert.False(t, c.Debounce(1+shardCount).Towing)
}

func TestCacheDoSerializesPerDevice(t *testing.T) {
	c := NewCache()
	const goroutines, rounds = 8, 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				id := int64(g % 2)
				c.Do(id, func(e *Entry) {
					if e.Motion == nil {
						e.Motion = &domain.MotionState{}
					}
					e.Motion.Streak++
				})
			}
		}(g)
	}
	wg.Wait()

	for _, id := range []int64{0, 1} {
		m, ok := c.Motion(id)
		require.True(t, ok)
		assert.Equal(t, goroutines/2*rounds, m.Streak)
	}
}

func TestGeofencesReplace(t *testing.T) {
	g := NewGeofences()
	g.Put(domain.Geofence{ID: 1, Name: "old"})
	g.Replace([]domain.Geofence{{ID: 2, Name: "depot", CalendarID: 9}})

	_, ok := g.Geofence(1)
	assert.False(t, ok)
	gf, ok := g.Geofence(2)
	require.True(t, ok)
	assert.Equal(t, int64(9), gf.CalendarID)
}
