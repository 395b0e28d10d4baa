package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Store keys. Position and route entries are trip-scoped; the driver
// profile keys are shared across trips.
const (
	DriversKey       = "drivers"
	CurrentDriverKey = "currentDriver"
)

func PositionKey(tripID string) string { return "trip_" + tripID }
func RouteKey(tripID string) string    { return "route_" + tripID }

// KV is the shared key-value store both sides of a trip poll. Values are
// JSON-serialized strings; each key has a single writer role.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, string(b))
}

// GetJSON reads key and unmarshals into out. A missing entry, a JSON null
// or a malformed value all read as absence (ok=false), never as an error.
func GetJSON(ctx context.Context, kv KV, key string, out any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if raw == "" || raw == "null" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

// Memory is the in-process KV used by default and throughout the tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
