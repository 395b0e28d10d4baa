package storage

import (
	"sync"

	"github.com/example/trip-share/internal/models"
)

// TripStore records trip lifecycle history (created, broadcasting,
// notification milestones, stopped) for later inspection. It is an audit
// trail, not part of the sync protocol.
type TripStore interface {
	SaveTrip(t *models.Trip) error
	UpdateTrip(t *models.Trip) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string]*models.Trip
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string]*models.Trip)}
}

func (m *MemoryStore) SaveTrip(t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	return nil
}

func (m *MemoryStore) UpdateTrip(t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	return nil
}

func (m *MemoryStore) Get(id string) (*models.Trip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	return t, ok
}
