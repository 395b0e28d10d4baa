package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/trip-share/internal/broadcast"
	"github.com/example/trip-share/internal/dispatch"
	"github.com/example/trip-share/internal/notify"
	"github.com/example/trip-share/internal/observability"
	"github.com/example/trip-share/internal/resolver"
	"github.com/example/trip-share/internal/storage"
	"github.com/example/trip-share/internal/store"
	"github.com/example/trip-share/internal/trip"
)

var ErrUnknownTrip = fmt.Errorf("session: unknown trip")

// Manager owns the active sessions, one per trip. Creating a trip for a
// driver who already has one regenerates it: the old session stops, its
// store entries are cleared, and all notification state starts fresh.
type Manager struct {
	kv       store.KV
	sms      dispatch.SMS
	places   resolver.Places
	producer broadcast.PositionPublisher // optional
	watchers broadcast.Watchers          // optional
	history  storage.TripStore
	logger   *slog.Logger
	baseURL  string
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	current  string // trip ID of the most recently created trip
}

type ManagerConfig struct {
	KV       store.KV
	SMS      dispatch.SMS
	Places   resolver.Places
	Producer broadcast.PositionPublisher
	Watchers broadcast.Watchers
	History  storage.TripStore
	Logger   *slog.Logger
	BaseURL  string
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		kv:       cfg.KV,
		sms:      cfg.SMS,
		places:   cfg.Places,
		producer: cfg.Producer,
		watchers: cfg.Watchers,
		history:  cfg.History,
		logger:   cfg.Logger,
		baseURL:  cfg.BaseURL,
		interval: DefaultPollInterval,
		sessions: make(map[string]*Session),
	}
}

// CreateTrip allocates a new trip and starts its poll loop. Any previously
// current trip is closed and its keys cleared first.
func (m *Manager) CreateTrip(ctx context.Context, passcode, recipient string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevID := m.current
	if prev, ok := m.sessions[prevID]; ok {
		prev.Close()
		delete(m.sessions, prevID)
	}

	t, err := trip.Create(ctx, m.kv, m.baseURL, passcode, recipient, prevID)
	if err != nil {
		return nil, err
	}

	n := notify.New(m.sms, m.logger, recipient, t.TrackURL)
	b := broadcast.New(m.kv, n, m.logger, t.ID)
	if m.producer != nil {
		b = b.WithProducer(m.producer)
	}
	if m.watchers != nil {
		b = b.WithWatchers(m.watchers)
	}
	s := &Session{
		Trip:        t,
		Broadcaster: b,
		kv:          m.kv,
		notifier:    n,
		resolver:    resolver.New(m.kv, m.places, m.logger),
		history:     m.history,
		logger:      m.logger,
		interval:    m.interval,
	}
	if err := m.history.SaveTrip(&t); err != nil {
		m.logger.Warn("trip history save failed", "trip_id", t.ID, "error", err)
	}
	m.sessions[t.ID] = s
	m.current = t.ID
	observability.TripsCreated.Inc()

	// The session outlives the creating request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.Run(runCtx)
	return s, nil
}

func (m *Manager) Get(tripID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tripID]
	if !ok {
		return nil, ErrUnknownTrip
	}
	return s, nil
}

// Close stops every active session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}

// SetPollInterval overrides the 1-second default, used by tests.
func (m *Manager) SetPollInterval(d time.Duration) { m.interval = d }
