package state

import (
	"sync"

	"fleet-monitor/detector/internal/domain"
)

// Geofences is a read-mostly registry of geofence metadata.
type Geofences struct {
	mu   sync.RWMutex
	byID map[int64]domain.Geofence
}

func NewGeofences() *Geofences {
	return &Geofences{byID: make(map[int64]domain.Geofence)}
}

// Replace swaps the whole registry, as done after a reload from storage.
func (g *Geofences) Replace(list []domain.Geofence) {
	next := make(map[int64]domain.Geofence, len(list))
	for _, gf := range list {
		next[gf.ID] = gf
	}
	g.mu.Lock()
	g.byID = next
	g.mu.Unlock()
}

func (g *Geofences) Put(gf domain.Geofence) {
	g.mu.Lock()
	g.byID[gf.ID] = gf
	g.mu.Unlock()
}

func (g *Geofences) Geofence(id int64) (domain.Geofence, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gf, ok := g.byID[id]
	return gf, ok
}
