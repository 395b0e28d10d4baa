// Package resolver turns a bare restroom request into a concrete stop by
// looking up the nearest suitable amenity around the driver's current
// position and writing the resolved destination back onto the request.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/observability"
	"github.com/example/trip-share/internal/store"
)

// Gas stations are the amenity used for restroom stops.
const amenityCategory = "gas station"

// Places is the subset of the places client the resolver needs.
type Places interface {
	Nearby(ctx context.Context, category string, pos models.Position) (models.Place, error)
}

// Resolver handles at most one in-flight resolution per trip session.
// Subsequent poll ticks while a lookup is running do not restart it, and a
// failed lookup is never retried until the pending request or the driver's
// position actually changes.
type Resolver struct {
	kv       store.KV
	places   Places
	logger   *slog.Logger
	inflight atomic.Bool

	mu         sync.Mutex
	status     string
	lastFailed string // state fingerprint of the last failed attempt
}

func New(kv store.KV, places Places, logger *slog.Logger) *Resolver {
	return &Resolver{kv: kv, places: places, logger: logger}
}

// TryStart begins an asynchronous resolution unless one is already running
// or the exact same request/position state already failed. It returns
// whether a new resolution was started.
func (r *Resolver) TryStart(ctx context.Context, tripID string) bool {
	fp := r.stateFingerprint(ctx, tripID)
	r.mu.Lock()
	failedBefore := r.lastFailed != "" && fp == r.lastFailed
	r.mu.Unlock()
	if failedBefore {
		return false
	}
	if !r.inflight.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer r.inflight.Store(false)
		if err := r.Resolve(ctx, tripID); err != nil {
			observability.ResolverFailures.Inc()
			r.mu.Lock()
			r.lastFailed = fp
			r.status = "Could not find a restroom stop: " + err.Error()
			r.mu.Unlock()
			r.logger.Warn("restroom resolution failed", "trip_id", tripID, "error", err)
			return
		}
		r.mu.Lock()
		r.lastFailed = ""
		r.status = ""
		r.mu.Unlock()
	}()
	return true
}

// stateFingerprint captures the raw store state a resolution attempt would
// run against: the pending route entry and the current position entry. A
// re-issued request or a fresh position sample changes the fingerprint and
// re-arms resolution after a failure.
func (r *Resolver) stateFingerprint(ctx context.Context, tripID string) string {
	route, _, _ := r.kv.Get(ctx, store.RouteKey(tripID))
	pos, _, _ := r.kv.Get(ctx, store.PositionKey(tripID))
	return route + "|" + pos
}

// Resolve performs one synchronous lookup: read the driver's position, find
// the nearest amenity, and overwrite the route request with the resolved
// destination. It does not retry on failure; the passenger must reissue the
// request or the next position update must arrive first.
func (r *Resolver) Resolve(ctx context.Context, tripID string) error {
	var pos models.Position
	ok, err := store.GetJSON(ctx, r.kv, store.PositionKey(tripID), &pos)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no current position for trip %s", tripID)
	}
	place, err := r.places.Nearby(ctx, amenityCategory, pos)
	if err != nil {
		return err
	}
	resolved := models.RouteRequest{
		Type: models.RequestRestroom,
		Destination: &models.Destination{
			Lat:  place.Lat,
			Lng:  place.Lng,
			Note: place.Name,
		},
	}
	return store.SetJSON(ctx, r.kv, store.RouteKey(tripID), resolved)
}

// Status returns the latest user-visible resolution status, empty when the
// last attempt succeeded or none has run.
func (r *Resolver) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
