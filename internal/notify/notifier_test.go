package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/trip-share/internal/models"
)

type fakeSMS struct {
	mu     sync.Mutex
	bodies []string
	fail   bool
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("gateway down")
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApproachFiresEachNotificationOnce(t *testing.T) {
	sms := &fakeSMS{}
	n := New(sms, discard(), "+15550100", "https://example.com/track.html?trip=t1")
	ctx := context.Background()
	n.SendInitialLink(ctx)
	n.SendInitialLink(ctx) // second start must not resend

	dest := models.Destination{Lat: 37.0, Lng: -122.0}
	// Approach monotonically: far, inside 5mi (twice), inside 0.1mi (twice).
	positions := []models.Position{
		{Lat: 37.5, Lng: -122.0},
		{Lat: 37.05, Lng: -122.0},
		{Lat: 37.04, Lng: -122.0},
		{Lat: 37.0005, Lng: -122.0},
		{Lat: 37.0, Lng: -122.0},
	}
	var events []string
	for _, p := range positions {
		if e := n.Tick(ctx, p, dest); e != EventNone {
			events = append(events, e)
		}
	}
	if len(events) != 2 || events[0] != EventTenMin || events[1] != EventArrived {
		t.Fatalf("expected [ten_min arrived], got %v", events)
	}
	if len(sms.bodies) != 3 {
		t.Fatalf("expected 3 messages (link, ten-min, arrived), got %d: %v", len(sms.bodies), sms.bodies)
	}
}

func TestArrivedCanFireFirst(t *testing.T) {
	sms := &fakeSMS{}
	n := New(sms, discard(), "+15550100", "url")
	ctx := context.Background()
	n.SendInitialLink(ctx)

	dest := models.Destination{Lat: 37.0, Lng: -122.0}
	if e := n.Tick(ctx, models.Position{Lat: 37.0, Lng: -122.0}, dest); e != EventArrived {
		t.Fatalf("expected arrived, got %q", e)
	}
	// Still within 5mi afterwards: ten-minute message must never follow.
	if e := n.Tick(ctx, models.Position{Lat: 37.01, Lng: -122.0}, dest); e != EventNone {
		t.Fatalf("expected no event after arrival, got %q", e)
	}
}

func TestTenMinRequiresInitialLink(t *testing.T) {
	sms := &fakeSMS{}
	n := New(sms, discard(), "+15550100", "url")
	ctx := context.Background()

	dest := models.Destination{Lat: 37.0, Lng: -122.0}
	if e := n.Tick(ctx, models.Position{Lat: 37.04, Lng: -122.0}, dest); e != EventNone {
		t.Fatalf("ten-min must wait for initial link, got %q", e)
	}
	n.SendInitialLink(ctx)
	if e := n.Tick(ctx, models.Position{Lat: 37.04, Lng: -122.0}, dest); e != EventTenMin {
		t.Fatalf("expected ten_min after link sent, got %q", e)
	}
}

func TestNoRecipientStillReachesArrived(t *testing.T) {
	sms := &fakeSMS{}
	n := New(sms, discard(), "", "url")
	ctx := context.Background()
	n.SendInitialLink(ctx)
	if n.LinkSent() {
		t.Fatal("link must not be marked sent without a recipient")
	}

	dest := models.Destination{Lat: 37.0, Lng: -122.0}
	// The ten-minute message needs a recipient; no event inside 5mi.
	if e := n.Tick(ctx, models.Position{Lat: 37.04, Lng: -122.0}, dest); e != EventNone {
		t.Fatalf("expected no ten-min event without recipient, got %q", e)
	}
	// Arrival depends on distance alone and must still be reached.
	if e := n.Tick(ctx, models.Position{Lat: 37.0, Lng: -122.0}, dest); e != EventArrived {
		t.Fatalf("expected arrived, got %q", e)
	}
	// One-shot: no repeat on the next tick.
	if e := n.Tick(ctx, models.Position{Lat: 37.0, Lng: -122.0}, dest); e != EventNone {
		t.Fatalf("expected no event after arrival, got %q", e)
	}
	if len(sms.bodies) != 0 {
		t.Fatalf("no messages expected without a recipient, got %v", sms.bodies)
	}
}

func TestDispatchFailureStillAdvancesState(t *testing.T) {
	sms := &fakeSMS{fail: true}
	n := New(sms, discard(), "+15550100", "url")
	ctx := context.Background()
	n.SendInitialLink(ctx)

	dest := models.Destination{Lat: 37.0, Lng: -122.0}
	if e := n.Tick(ctx, models.Position{Lat: 37.0, Lng: -122.0}, dest); e != EventArrived {
		t.Fatalf("expected arrived, got %q", e)
	}
	// Failure is never retried.
	if e := n.Tick(ctx, models.Position{Lat: 37.0, Lng: -122.0}, dest); e != EventNone {
		t.Fatalf("expected no retry, got %q", e)
	}
}
