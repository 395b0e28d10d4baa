package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/trip-share/internal/channel"
	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/store"
)

type fakePlaces struct {
	place   models.Place
	err     error
	release chan struct{} // when non-nil, Nearby blocks until closed
	calls   int
}

func (f *fakePlaces) Nearby(ctx context.Context, category string, pos models.Position) (models.Place, error) {
	f.calls++
	if f.release != nil {
		<-f.release
	}
	return f.place, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestResolveRewritesRequest(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	_ = store.SetJSON(ctx, kv, store.PositionKey("t1"), models.Position{Lat: 37, Lng: -122})
	_ = channel.Send(ctx, kv, "t1", models.RouteRequest{Type: models.RequestRestroom})

	fp := &fakePlaces{place: models.Place{Lat: 37.01, Lng: -122.01, Name: "Shell, Main St"}}
	r := New(kv, fp, discard())
	if err := r.Resolve(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	req, ok, _ := channel.Poll(ctx, kv, "t1")
	if !ok || req.Type != models.RequestRestroom || req.Destination == nil {
		t.Fatalf("unexpected request: %+v ok=%v", req, ok)
	}
	if req.Destination.Note != "Shell, Main St" {
		t.Fatalf("destination note: %q", req.Destination.Note)
	}
}

func TestResolveWithoutPositionFails(t *testing.T) {
	kv := store.NewMemory()
	r := New(kv, &fakePlaces{}, discard())
	if err := r.Resolve(context.Background(), "t1"); err == nil {
		t.Fatal("expected error when no position exists")
	}
}

func TestResolveLookupFailureLeavesRequestPending(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	_ = store.SetJSON(ctx, kv, store.PositionKey("t1"), models.Position{Lat: 37, Lng: -122})
	_ = channel.Send(ctx, kv, "t1", models.RouteRequest{Type: models.RequestRestroom})

	r := New(kv, &fakePlaces{err: errors.New("network down")}, discard())
	if err := r.Resolve(ctx, "t1"); err == nil {
		t.Fatal("expected lookup error")
	}
	req, ok, _ := channel.Poll(ctx, kv, "t1")
	if !ok || req.Destination != nil {
		t.Fatalf("request must remain unresolved: %+v ok=%v", req, ok)
	}
}

func TestTryStartGuardsInFlight(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	_ = store.SetJSON(ctx, kv, store.PositionKey("t1"), models.Position{Lat: 37, Lng: -122})

	fp := &fakePlaces{place: models.Place{Name: "x"}, release: make(chan struct{})}
	r := New(kv, fp, discard())

	if !r.TryStart(ctx, "t1") {
		t.Fatal("first start must run")
	}
	if r.TryStart(ctx, "t1") {
		t.Fatal("second start must be rejected while in flight")
	}
	close(fp.release)

	// flag clears once the lookup completes
	deadline := time.Now().Add(time.Second)
	for r.inflight.Load() {
		if time.Now().After(deadline) {
			t.Fatal("in-flight flag never cleared")
		}
		time.Sleep(time.Millisecond)
	}
	if !r.TryStart(ctx, "t1") {
		t.Fatal("start must be possible again after completion")
	}
}

func TestFailedLookupNotRetriedUntilStateChanges(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	_ = store.SetJSON(ctx, kv, store.PositionKey("t1"), models.Position{Lat: 37, Lng: -122})
	_ = channel.Send(ctx, kv, "t1", models.RouteRequest{Type: models.RequestRestroom})

	fp := &fakePlaces{err: errors.New("service unavailable")}
	r := New(kv, fp, discard())

	if !r.TryStart(ctx, "t1") {
		t.Fatal("first attempt must run")
	}
	waitIdle(t, r)

	// Neither the request nor the position changed: repeated poll ticks
	// must not hit the lookup service again.
	for i := 0; i < 5; i++ {
		if r.TryStart(ctx, "t1") {
			t.Fatal("must not retry with unchanged state")
		}
	}
	if fp.calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", fp.calls)
	}

	// A fresh position sample re-arms resolution.
	_ = store.SetJSON(ctx, kv, store.PositionKey("t1"), models.Position{Lat: 37.1, Lng: -122})
	if !r.TryStart(ctx, "t1") {
		t.Fatal("new position must allow another attempt")
	}
	waitIdle(t, r)
	if fp.calls != 2 {
		t.Fatalf("lookup calls = %d, want 2", fp.calls)
	}
}

func waitIdle(t *testing.T, r *Resolver) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for r.inflight.Load() {
		if time.Now().After(deadline) {
			t.Fatal("in-flight flag never cleared")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFailureSetsUserVisibleStatus(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	r := New(kv, &fakePlaces{err: errors.New("boom")}, discard())
	r.TryStart(ctx, "t1")

	deadline := time.Now().Add(time.Second)
	for r.Status() == "" {
		if time.Now().After(deadline) {
			t.Fatal("status never set")
		}
		time.Sleep(time.Millisecond)
	}
}
