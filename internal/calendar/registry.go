package calendar

import (
	"sync"
	"time"
)

// Registry maps calendar ids to schedules. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	schedules map[int64]Schedule
}

func NewRegistry() *Registry {
	return &Registry{schedules: make(map[int64]Schedule)}
}

func (r *Registry) Put(id int64, s Schedule) {
	r.mu.Lock()
	r.schedules[id] = s
	r.mu.Unlock()
}

func (r *Registry) Replace(schedules map[int64]Schedule) {
	next := make(map[int64]Schedule, len(schedules))
	for id, s := range schedules {
		next[id] = s
	}
	r.mu.Lock()
	r.schedules = next
	r.mu.Unlock()
}

// CheckMoment reports whether t is inside calendar id. A calendar the
// registry does not know places no restriction.
func (r *Registry) CheckMoment(id int64, t time.Time) bool {
	r.mu.RLock()
	s, ok := r.schedules[id]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return s.Contains(t)
}
