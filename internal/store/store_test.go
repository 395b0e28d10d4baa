package store

import (
	"context"
	"testing"

	"github.com/example/trip-share/internal/models"
)

func TestGetJSONMissingReadsAsAbsence(t *testing.T) {
	kv := NewMemory()
	var p models.Position
	ok, err := GetJSON(context.Background(), kv, PositionKey("t1"), &p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected absence for missing key")
	}
}

func TestGetJSONMalformedReadsAsAbsence(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	if err := kv.Set(ctx, RouteKey("t1"), "{not json"); err != nil {
		t.Fatal(err)
	}
	var rr models.RouteRequest
	ok, err := GetJSON(ctx, kv, RouteKey("t1"), &rr)
	if err != nil {
		t.Fatalf("malformed value must not error: %v", err)
	}
	if ok {
		t.Fatal("malformed value must read as absence")
	}
}

func TestGetJSONNullReadsAsAbsence(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	// Trip creation seeds the route key with a JSON null.
	if err := kv.Set(ctx, RouteKey("t1"), "null"); err != nil {
		t.Fatal(err)
	}
	var rr models.RouteRequest
	ok, _ := GetJSON(ctx, kv, RouteKey("t1"), &rr)
	if ok {
		t.Fatal("null must read as absence")
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	in := models.Position{Lat: 37.0, Lng: -122.0}
	if err := SetJSON(ctx, kv, PositionKey("t1"), in); err != nil {
		t.Fatal(err)
	}
	var out models.Position
	ok, err := GetJSON(ctx, kv, PositionKey("t1"), &out)
	if err != nil || !ok {
		t.Fatalf("expected value, ok=%v err=%v", ok, err)
	}
	if out != in {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestRemove(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	_ = kv.Set(ctx, "k", "v")
	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("key still present after remove")
	}
}
