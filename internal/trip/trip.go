package trip

import (
	"context"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/store"
)

// NewID returns a compact trip token: unix milliseconds in base36. Unique
// enough for the single-writer use case. Regenerating twice within the same
// millisecond bumps the clock value so tokens never repeat in-process.
func NewID() string {
	now := time.Now().UnixMilli()
	for {
		last := lastID.Load()
		if now <= last {
			now = last + 1
		}
		if lastID.CompareAndSwap(last, now) {
			return strconv.FormatInt(now, 36)
		}
	}
}

var lastID atomic.Int64

// ShareURLs builds the passenger and track links for a trip. The passenger
// link is the only way a passenger learns the trip token.
func ShareURLs(base, tripID, passcode string) (passengerURL, trackURL string) {
	pu, _ := url.Parse(base + "/passenger.html")
	q := pu.Query()
	q.Set("trip", tripID)
	if passcode != "" {
		q.Set("code", passcode)
	}
	pu.RawQuery = q.Encode()

	tu, _ := url.Parse(base + "/track.html")
	tq := tu.Query()
	tq.Set("trip", tripID)
	tu.RawQuery = tq.Encode()
	return pu.String(), tu.String()
}

// Create allocates a new trip, clearing the previous trip's position and
// route entries first so regeneration never leaves orphaned keys. prevID
// may be empty on the first trip of a session.
func Create(ctx context.Context, kv store.KV, base, passcode, recipient, prevID string) (models.Trip, error) {
	if prevID != "" {
		if err := kv.Remove(ctx, store.PositionKey(prevID)); err != nil {
			return models.Trip{}, err
		}
		if err := kv.Remove(ctx, store.RouteKey(prevID)); err != nil {
			return models.Trip{}, err
		}
	}
	id := NewID()
	// Seed an empty route so passengers polling immediately read "no
	// request" rather than a missing key.
	if err := kv.Set(ctx, store.RouteKey(id), "null"); err != nil {
		return models.Trip{}, err
	}
	passengerURL, trackURL := ShareURLs(base, id, passcode)
	now := time.Now()
	return models.Trip{
		ID:           id,
		Passcode:     passcode,
		Recipient:    recipient,
		PassengerURL: passengerURL,
		TrackURL:     trackURL,
		Status:       models.TripCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
