// Package state keeps the in-process view of every device the service has
// seen: its record, the last accepted position and its debounce and motion
// state.
package state

import (
	"sync"

	"fleet-monitor/detector/internal/domain"
)

const shardCount = 64

// Entry is the mutable state of one device. It is only reachable inside
// Cache.Do, which holds the device's lock for the duration of the callback.
type Entry struct {
	Device   *domain.Device
	Last     *domain.Position
	Debounce domain.DebounceState
	Motion   *domain.MotionState
}

type slot struct {
	mu    sync.Mutex
	entry Entry
}

type shard struct {
	mu    sync.RWMutex
	slots map[int64]*slot
}

// Cache is safe for concurrent use. Calls for the same device id are
// serialized; calls for different ids only share a shard map lookup.
type Cache struct {
	shards [shardCount]shard
}

func NewCache() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].slots = make(map[int64]*slot)
	}
	return c
}

func (c *Cache) shardFor(deviceID int64) *shard {
	return &c.shards[uint64(deviceID)%shardCount]
}

func (c *Cache) slot(deviceID int64) *slot {
	sh := c.shardFor(deviceID)
	sh.mu.RLock()
	s, ok := sh.slots[deviceID]
	sh.mu.RUnlock()
	if ok {
		return s
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok = sh.slots[deviceID]; !ok {
		s = &slot{}
		sh.slots[deviceID] = s
	}
	return s
}

func (c *Cache) lookup(deviceID int64) (*slot, bool) {
	sh := c.shardFor(deviceID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.slots[deviceID]
	return s, ok
}

// Do runs fn with exclusive access to the device's entry.
func (c *Cache) Do(deviceID int64, fn func(e *Entry)) {
	s := c.slot(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.entry)
}

// Known reports whether a device record has been loaded for deviceID.
func (c *Cache) Known(deviceID int64) bool {
	s, ok := c.lookup(deviceID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry.Device != nil
}

// PutDevice replaces the cached device record. Motion state derived from the
// previous record is dropped and rebuilt lazily from the new one.
func (c *Cache) PutDevice(d domain.Device) {
	c.Do(d.ID, func(e *Entry) {
		dev := d
		e.Device = &dev
		e.Motion = nil
	})
}

// RefreshDevice overlays the externally owned fields of d onto the cached
// record and keeps its motion state. It returns false when the device has
// not been loaded yet.
func (c *Cache) RefreshDevice(d domain.Device) bool {
	var refreshed bool
	c.Do(d.ID, func(e *Entry) {
		if e.Device == nil {
			return
		}
		e.Device.Name = d.Name
		e.Device.UniqueID = d.UniqueID
		e.Device.Attributes = d.Attributes
		refreshed = true
	})
	return refreshed
}

// Device returns a copy of the cached device record.
func (c *Cache) Device(deviceID int64) (domain.Device, bool) {
	var (
		out domain.Device
		ok  bool
	)
	s, found := c.lookup(deviceID)
	if !found {
		return out, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry.Device != nil {
		out, ok = *s.entry.Device, true
	}
	return out, ok
}

func (c *Cache) LastPosition(deviceID int64) (*domain.Position, bool) {
	s, found := c.lookup(deviceID)
	if !found {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry.Last, s.entry.Last != nil
}

// SetLastPosition stores p unless the cache already holds a position with an
// equal or later fix time.
func (c *Cache) SetLastPosition(p *domain.Position) bool {
	var stored bool
	c.Do(p.DeviceID, func(e *Entry) {
		if e.Last != nil && !p.FixTime.After(e.Last.FixTime) {
			return
		}
		e.Last = p
		stored = true
	})
	return stored
}

func (c *Cache) SetDebounce(deviceID int64, d domain.DebounceState) {
	c.Do(deviceID, func(e *Entry) {
		e.Debounce = d
	})
}

func (c *Cache) Debounce(deviceID int64) domain.DebounceState {
	var out domain.DebounceState
	c.Do(deviceID, func(e *Entry) {
		out = e.Debounce
	})
	return out
}

// Motion returns a copy of the device's motion state, if it has been built.
func (c *Cache) Motion(deviceID int64) (domain.MotionState, bool) {
	var (
		out domain.MotionState
		ok  bool
	)
	c.Do(deviceID, func(e *Entry) {
		if e.Motion != nil {
			out, ok = *e.Motion, true
		}
	})
	return out, ok
}
