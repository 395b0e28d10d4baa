package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-share/internal/broadcast"
	"github.com/example/trip-share/internal/channel"
	"github.com/example/trip-share/internal/config"
	"github.com/example/trip-share/internal/dispatch"
	"github.com/example/trip-share/internal/identity"
	"github.com/example/trip-share/internal/ingest"
	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/observability"
	"github.com/example/trip-share/internal/places"
	"github.com/example/trip-share/internal/session"
	"github.com/example/trip-share/internal/storage"
	"github.com/example/trip-share/internal/store"
)

// Geocoder resolves free-text addresses for passenger destination requests.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Place, error)
}

type Server struct {
	Manager  *session.Manager
	Identity *identity.Service
	Geocoder Geocoder
	KV       store.KV
	WSReg    *dispatch.WSRegistry

	logger   *slog.Logger
	validate *validator.Validate
	mux      *mux.Router
}

// NewServer wires the full service from configuration: store, SMS gateway,
// places client, optional Kafka producer and trip history backend.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var kv store.KV
	if cfg.RedisAddr != "" {
		kv = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		kv = store.NewMemory()
	}

	var history storage.TripStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			history = ps
		} else {
			logger.Warn("postgres unavailable, using memory trip history", "error", err)
		}
	}
	if history == nil {
		history = storage.NewMemoryStore()
	}

	var sms dispatch.SMS = noopSMS{}
	if cfg.SMSConfigured() {
		sms = dispatch.NewTwilioSMS(cfg.TwilioEndpoint, cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom)
	}

	pl := places.NewClient(cfg.PlacesEndpoint, cfg.PlacesUserAgent)
	wsreg := dispatch.NewWSRegistry(logger)

	mcfg := session.ManagerConfig{
		KV:       kv,
		SMS:      sms,
		Places:   pl,
		Watchers: wsreg,
		History:  history,
		Logger:   logger,
		BaseURL:  cfg.BaseURL,
	}
	if len(cfg.KafkaBrokers) > 0 {
		mcfg.Producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	mgr := session.NewManager(mcfg)
	mgr.SetPollInterval(cfg.PollInterval)

	s := &Server{
		Manager:  mgr,
		Identity: identity.NewService(kv),
		Geocoder: pl,
		KV:       kv,
		WSReg:    wsreg,
		logger:   logger,
		validate: validator.New(),
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/drivers/signup", s.handleSignUp).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/login", s.handleLogIn).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips", s.handleCreateTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/broadcast/start", s.handleBroadcastStart).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/broadcast/stop", s.handleBroadcastStop).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/position", s.handlePostPosition).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/position", s.handleGetPosition).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/request", s.handlePostRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/request", s.handleGetRequest).Methods("GET")
	s.mux.HandleFunc("/ws/trips/{trip_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type signUpPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Passcode  string `json:"passcode"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var p signUpPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := s.Identity.SignUp(r.Context(), p.FirstName, p.LastName, p.Passcode)
	if err != nil {
		s.identityError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleLogIn(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := s.Identity.LogIn(r.Context(), p.Passcode)
	if err != nil {
		s.identityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type createTripPayload struct {
	Recipient string `json:"recipient"`
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var p createTripPayload
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&p) // empty body means defaults
	}
	// The share link carries the active driver's passcode when one is
	// logged in; trips work without a profile too.
	passcode := ""
	if profile, ok, err := s.Identity.Current(r.Context()); err == nil && ok {
		passcode = profile.Passcode
	}
	sess, err := s.Manager.CreateTrip(r.Context(), passcode, p.Recipient)
	if err != nil {
		http.Error(w, "could not create trip", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Trip)
}

func (s *Server) handleBroadcastStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.StartBroadcast(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBroadcastStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.StopBroadcast()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostPosition(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var pos models.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.Broadcaster.Publish(r.Context(), pos); err != nil {
		if errors.Is(err, broadcast.ErrNotBroadcasting) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var pos models.Position
	ok, err := store.GetJSON(r.Context(), s.KV, store.PositionKey(tripID), &pos)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "no position yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

type routeRequestPayload struct {
	Type        string              `json:"type" validate:"omitempty,oneof=new_destination restroom stop"`
	Address     string              `json:"address"`
	Note        string              `json:"note"`
	Destination *models.Destination `json:"destination"`
}

func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var p routeRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(p); err != nil {
		http.Error(w, "unknown request type", http.StatusBadRequest)
		return
	}

	req := models.RouteRequest{Type: p.Type, Destination: p.Destination}
	if req.Destination == nil && p.Address != "" {
		place, err := s.Geocoder.Geocode(r.Context(), p.Address)
		if err != nil {
			if errors.Is(err, places.ErrNoResults) {
				http.Error(w, "address not found", http.StatusNotFound)
				return
			}
			http.Error(w, "address lookup failed", http.StatusBadGateway)
			return
		}
		req.Destination = &models.Destination{Lat: place.Lat, Lng: place.Lng, Note: p.Note}
	}
	if req.Type == "" && req.Destination == nil {
		http.Error(w, "request needs a type or a destination", http.StatusBadRequest)
		return
	}
	if err := channel.Send(r.Context(), s.KV, tripID, req); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	observability.RequestsSent.Inc()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	req, ok, err := channel.Poll(r.Context(), s.KV, tripID)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	resp := map[string]any{"pending": ok}
	if ok {
		resp["request"] = req
		if req.Destination != nil {
			resp["display_text"] = req.Destination.DisplayText()
		}
	}
	if sess, err := s.Manager.Get(tripID); err == nil {
		if status := sess.ResolverStatus(); status != "" {
			resp["resolver_status"] = status
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := s.WSReg.Add(tripID, conn)
	// Reap the watcher when the peer goes away.
	go func() {
		defer s.WSReg.Remove(tripID, sess)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	tripID := mux.Vars(r)["trip_id"]
	sess, err := s.Manager.Get(tripID)
	if err != nil {
		http.Error(w, "unknown trip", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) identityError(w http.ResponseWriter, err error) {
	var ve *identity.ValidationError
	var ce *identity.ConflictError
	var ne *identity.NotFoundError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusBadRequest)
	case errors.As(err, &ce):
		http.Error(w, ce.Error(), http.StatusConflict)
	case errors.As(err, &ne):
		http.Error(w, ne.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// noopSMS is used when no gateway is configured; notifications are simply
// never dispatched, matching a trip without a recipient.
type noopSMS struct{}

func (noopSMS) Send(ctx context.Context, to, body string) error { return nil }
