// Package channel carries the passenger's route requests to the driver
// through the shared store. Delivery is last-write-wins: a new request
// fully replaces any prior pending one, and a request overwritten between
// two driver polls is never observed. Only the latest state matters.
package channel

import (
	"context"

	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/store"
)

// Send writes the passenger's request, replacing any pending one. An
// untyped request carrying a destination is normalized to new_destination.
func Send(ctx context.Context, kv store.KV, tripID string, req models.RouteRequest) error {
	if req.Type == "" && req.Destination != nil {
		req.Type = models.RequestNewDestination
	}
	return store.SetJSON(ctx, kv, store.RouteKey(tripID), req)
}

// Poll returns the latest pending request, or ok=false when none is
// present. Malformed entries read as "no request", never as an error.
func Poll(ctx context.Context, kv store.KV, tripID string) (models.RouteRequest, bool, error) {
	var req models.RouteRequest
	ok, err := store.GetJSON(ctx, kv, store.RouteKey(tripID), &req)
	if err != nil || !ok {
		return models.RouteRequest{}, false, err
	}
	if req.Type == "" && req.Destination == nil {
		return models.RouteRequest{}, false, nil
	}
	return req, true, nil
}
