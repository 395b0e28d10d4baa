// Package notify implements the proximity notification state machine: three
// one-shot SMS events per trip, driven by the distance between the driver's
// current position and the passenger's destination on every poll tick.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/trip-share/internal/dispatch"
	"github.com/example/trip-share/internal/geo"
	"github.com/example/trip-share/internal/models"
)

// Events reported by Tick, used for metrics and trip history.
const (
	EventNone    = ""
	EventTenMin  = "ten_min"
	EventArrived = "arrived"
)

// Notifier tracks the one-shot flags for a single trip. Flags only move
// forward; they reset by constructing a fresh Notifier on trip
// regeneration.
type Notifier struct {
	mu          sync.Mutex
	sms         dispatch.SMS
	logger      *slog.Logger
	recipient   string
	trackURL    string
	linkSent    bool
	tenMinSent  bool
	arrivedSent bool
}

func New(sms dispatch.SMS, logger *slog.Logger, recipient, trackURL string) *Notifier {
	return &Notifier{sms: sms, logger: logger, recipient: recipient, trackURL: trackURL}
}

// SendInitialLink dispatches the share-link SMS the first time broadcasting
// starts for the trip. Subsequent calls are no-ops. Delivery failure is
// logged and not retried; the flag still advances so the message is never
// sent twice.
func (n *Notifier) SendInitialLink(ctx context.Context) {
	n.mu.Lock()
	if n.linkSent || n.recipient == "" {
		n.mu.Unlock()
		return
	}
	n.linkSent = true
	n.mu.Unlock()
	n.send(ctx, "Your driver has started the trip. Follow along: "+n.trackURL)
}

// Tick advances the state machine for one poll cycle. It returns the event
// reached this tick, if any. The arrival transition depends only on
// distance, so trips without a recipient still reach the arrived state;
// only the ten-minute message is gated on a configured recipient.
func (n *Notifier) Tick(ctx context.Context, pos models.Position, dest models.Destination) string {
	n.mu.Lock()
	if n.arrivedSent {
		n.mu.Unlock()
		return EventNone
	}
	d := geo.HaversineMiles(pos.Lat, pos.Lng, dest.Lat, dest.Lng)
	switch {
	case d <= geo.ArrivedMiles:
		// May fire straight from the initial state when the driver is
		// already within arrival range; the ten-minute message is then
		// skipped for good.
		n.arrivedSent = true
		n.tenMinSent = true
		n.mu.Unlock()
		n.send(ctx, "Your driver has arrived.")
		return EventArrived
	case d <= geo.TenMinutesMiles && n.recipient != "" && n.linkSent && !n.tenMinSent:
		n.tenMinSent = true
		n.mu.Unlock()
		n.send(ctx, "Your driver is about 10 minutes away.")
		return EventTenMin
	}
	n.mu.Unlock()
	return EventNone
}

// LinkSent reports whether the initial share-link SMS has gone out.
func (n *Notifier) LinkSent() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.linkSent
}

func (n *Notifier) send(ctx context.Context, body string) {
	if n.recipient == "" {
		return
	}
	if err := n.sms.Send(ctx, n.recipient, body); err != nil {
		n.logger.Warn("sms dispatch failed", "error", err)
	}
}
