// Package session runs the per-trip synchronization loop. Each active trip
// gets one Session: a fixed-interval poll over the shared store that reads
// the latest position and route request, advances the proximity state
// machine, and kicks off amenity resolution when asked for a restroom stop.
//
// All per-trip mutable state (notification flags, resolver in-flight flag)
// lives on the Session so multiple trips can run concurrently without
// cross-talk.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/trip-share/internal/broadcast"
	"github.com/example/trip-share/internal/channel"
	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/notify"
	"github.com/example/trip-share/internal/observability"
	"github.com/example/trip-share/internal/resolver"
	"github.com/example/trip-share/internal/storage"
	"github.com/example/trip-share/internal/store"
)

const DefaultPollInterval = time.Second

type Session struct {
	Trip        models.Trip
	Broadcaster *broadcast.Broadcaster

	kv       store.KV
	notifier *notify.Notifier
	resolver *resolver.Resolver
	history  storage.TripStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc

	mu          sync.Mutex
	destination *models.Destination
}

// Tick runs one poll cycle. It never returns an error: everything that can
// go wrong mid-trip is logged and retried naturally on the next tick.
func (s *Session) Tick(ctx context.Context) {
	req, ok, err := channel.Poll(ctx, s.kv, s.Trip.ID)
	if err != nil {
		s.logger.Warn("route poll failed", "trip_id", s.Trip.ID, "error", err)
		return
	}
	if !ok {
		return
	}

	if req.Type == models.RequestRestroom && req.Destination == nil {
		if s.resolver.TryStart(ctx, s.Trip.ID) {
			s.logger.Info("restroom resolution started", "trip_id", s.Trip.ID)
		}
		return
	}
	if req.Destination == nil {
		return
	}

	s.mu.Lock()
	s.destination = req.Destination
	s.mu.Unlock()

	var pos models.Position
	ok, err = store.GetJSON(ctx, s.kv, store.PositionKey(s.Trip.ID), &pos)
	if err != nil {
		s.logger.Warn("position read failed", "trip_id", s.Trip.ID, "error", err)
		return
	}
	if !ok {
		return
	}

	switch s.notifier.Tick(ctx, pos, *req.Destination) {
	case notify.EventTenMin:
		observability.NotificationsSent.WithLabelValues(notify.EventTenMin).Inc()
		s.setStatus(models.TripTenMinNotified)
	case notify.EventArrived:
		observability.NotificationsSent.WithLabelValues(notify.EventArrived).Inc()
		s.setStatus(models.TripArrived)
	}
}

// Run polls until the context ends or Close is called.
func (s *Session) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

// Close stops the poll loop. Safe to call more than once.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Broadcaster.Stop()
}

// StartBroadcast begins accepting position samples and records the
// lifecycle change. The underlying one-shot link SMS semantics live in the
// broadcaster.
func (s *Session) StartBroadcast(ctx context.Context) {
	if s.Broadcaster.Running() {
		return
	}
	s.Broadcaster.Start(ctx)
	s.setStatus(models.TripBroadcasting)
}

// StopBroadcast is idempotent; stopping a stopped trip changes nothing.
func (s *Session) StopBroadcast() {
	if !s.Broadcaster.Running() {
		return
	}
	s.Broadcaster.Stop()
	s.setStatus(models.TripStopped)
}

// Destination returns the driver-facing view of the current destination:
// its display text and whether one is set.
func (s *Session) Destination() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destination == nil {
		return "", false
	}
	return s.destination.DisplayText(), true
}

// ResolverStatus is the latest user-visible amenity resolution status.
func (s *Session) ResolverStatus() string { return s.resolver.Status() }

func (s *Session) setStatus(status string) {
	s.Trip.Status = status
	s.Trip.UpdatedAt = time.Now()
	t := s.Trip
	if err := s.history.UpdateTrip(&t); err != nil {
		s.logger.Warn("trip history update failed", "trip_id", s.Trip.ID, "error", err)
	}
}
