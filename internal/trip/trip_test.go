package trip

import (
	"context"
	"strings"
	"testing"

	"github.com/example/trip-share/internal/store"
)

func TestShareURLs(t *testing.T) {
	p, tr := ShareURLs("https://example.com", "abc123", "4321")
	if p != "https://example.com/passenger.html?code=4321&trip=abc123" {
		t.Fatalf("passenger url: %s", p)
	}
	if tr != "https://example.com/track.html?trip=abc123" {
		t.Fatalf("track url: %s", tr)
	}
}

func TestShareURLsWithoutPasscode(t *testing.T) {
	p, _ := ShareURLs("https://example.com", "abc123", "")
	if strings.Contains(p, "code=") {
		t.Fatalf("passenger url must omit empty code: %s", p)
	}
}

func TestCreateClearsPreviousTrip(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	_ = kv.Set(ctx, store.PositionKey("old"), `{"lat":1,"lng":2}`)
	_ = kv.Set(ctx, store.RouteKey("old"), `{"type":"stop"}`)

	tp, err := Create(ctx, kv, "https://example.com", "", "", "old")
	if err != nil {
		t.Fatal(err)
	}
	if tp.ID == "" || tp.ID == "old" {
		t.Fatalf("bad trip id %q", tp.ID)
	}
	if _, ok, _ := kv.Get(ctx, store.PositionKey("old")); ok {
		t.Fatal("old position entry not cleared")
	}
	if _, ok, _ := kv.Get(ctx, store.RouteKey("old")); ok {
		t.Fatal("old route entry not cleared")
	}
	// new route key is seeded empty
	raw, ok, _ := kv.Get(ctx, store.RouteKey(tp.ID))
	if !ok || raw != "null" {
		t.Fatalf("route key not seeded: ok=%v raw=%q", ok, raw)
	}
}
