// Package broadcast is the driver-side position pipeline: every accepted
// sample overwrites the trip's position entry, and is fanned out to the
// Kafka ingest topic and any live WebSocket watchers when configured.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/notify"
	"github.com/example/trip-share/internal/observability"
	"github.com/example/trip-share/internal/store"
)

var ErrNotBroadcasting = fmt.Errorf("broadcast: not started")

// PositionPublisher mirrors accepted samples to the ingest pipeline.
type PositionPublisher interface {
	PublishPosition(tripID string, pos models.Position) error
}

// Watchers receive live pushes of accepted samples.
type Watchers interface {
	Broadcast(tripID string, pos models.Position)
}

type Broadcaster struct {
	kv       store.KV
	producer PositionPublisher // optional
	watchers Watchers          // optional
	notifier *notify.Notifier
	logger   *slog.Logger
	tripID   string
	running  atomic.Bool
}

func New(kv store.KV, notifier *notify.Notifier, logger *slog.Logger, tripID string) *Broadcaster {
	return &Broadcaster{kv: kv, notifier: notifier, logger: logger, tripID: tripID}
}

func (b *Broadcaster) WithProducer(p PositionPublisher) *Broadcaster { b.producer = p; return b }
func (b *Broadcaster) WithWatchers(w Watchers) *Broadcaster         { b.watchers = w; return b }

// Start begins accepting samples. The first start of a trip with a
// configured recipient sends the share-link SMS; restarting after a stop
// does not resend it.
func (b *Broadcaster) Start(ctx context.Context) {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	b.notifier.SendInitialLink(ctx)
}

// Stop is idempotent and a no-op when not running.
func (b *Broadcaster) Stop() { b.running.Store(false) }

func (b *Broadcaster) Running() bool { return b.running.Load() }

// Publish validates and stores one sample, overwriting the previous one.
// Fan-out failures are logged and never fail the write.
func (b *Broadcaster) Publish(ctx context.Context, pos models.Position) error {
	if !b.running.Load() {
		return ErrNotBroadcasting
	}
	if !pos.Valid() {
		observability.PositionsInvalid.Inc()
		return fmt.Errorf("broadcast: invalid coordinates (%f, %f)", pos.Lat, pos.Lng)
	}
	if err := store.SetJSON(ctx, b.kv, store.PositionKey(b.tripID), pos); err != nil {
		return err
	}
	observability.PositionsWritten.Inc()
	if b.producer != nil {
		if err := b.producer.PublishPosition(b.tripID, pos); err != nil {
			b.logger.Warn("kafka publish failed", "trip_id", b.tripID, "error", err)
		}
	}
	if b.watchers != nil {
		b.watchers.Broadcast(b.tripID, pos)
	}
	return nil
}

// Run consumes a sample stream until it closes or the context ends, the
// server-side analogue of a geolocation watch. Individual bad samples are
// logged and skipped.
func (b *Broadcaster) Run(ctx context.Context, samples <-chan models.Position) {
	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-samples:
			if !ok {
				return
			}
			if err := b.Publish(ctx, pos); err != nil {
				b.logger.Warn("position rejected", "trip_id", b.tripID, "error", err)
			}
		}
	}
}
