package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"paperbroker/broker"
	"paperbroker/risk"
)

// SettingsStore is the optional pass-through persistence for risk settings
// and the watchlist. journal.SQLite implements it; a nil store means nothing
// persists across restarts.
type SettingsStore interface {
	Save(key string, v any) error
	Load(key string, v any) error
}

const (
	keyRiskSettings = "risk_settings"
	keyWatchlist    = "watchlist"
)

// Server is the HTTP adapter over the engine: a thin translation layer, no
// business logic of its own.
type Server struct {
	log      *slog.Logger
	broker   broker.BrokerAPI
	risk     *risk.Manager
	store    SettingsStore
	validate *validator.Validate
	hub      *hub

	wmu       sync.Mutex
	watchlist []string
}

func NewServer(log *slog.Logger, b broker.BrokerAPI, rm *risk.Manager, store SettingsStore) *Server {
	s := &Server{
		log:      log,
		broker:   b,
		risk:     rm,
		store:    store,
		validate: validator.New(),
		hub:      newHub(),
	}
	s.restore()
	return s
}

// restore loads persisted risk settings and watchlist, if a store is wired.
func (s *Server) restore() {
	if s.store == nil {
		return
	}

	var u risk.Update
	if err := s.store.Load(keyRiskSettings, &u); err == nil {
		if err := s.risk.Apply(u); err != nil {
			s.log.Warn("persisted risk settings rejected", "error", err)
		}
	}

	var wl []string
	if err := s.store.Load(keyWatchlist, &wl); err == nil {
		s.wmu.Lock()
		s.watchlist = wl
		s.wmu.Unlock()
	}
}

func (s *Server) Routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", s.PostOrder)
		r.Get("/orders", s.GetOrders)
		r.Get("/orders/open", s.GetOpenOrders)
		r.Get("/orders/{id}", s.GetOrder)
		r.Delete("/orders/{id}", s.DeleteOrder)

		r.Get("/positions", s.GetPositions)
		r.Get("/account", s.GetAccount)

		r.Get("/risk", s.GetRisk)
		r.Patch("/risk", s.PatchRisk)
		r.Post("/risk/toggle", s.PostRiskToggle)
		r.Post("/risk/trigger", s.PostRiskTrigger)
		r.Post("/risk/reset", s.PostRiskReset)

		r.Get("/watchlist", s.GetWatchlist)
		r.Post("/watchlist", s.PostWatchlist)
		r.Delete("/watchlist/{symbol}", s.DeleteWatchlist)
	})

	r.Get("/ws/quotes", s.QuoteStream)

	return r
}

// Broadcast pushes a quote to every connected stream subscriber.
func (s *Server) Broadcast(q broker.Quote) {
	s.hub.broadcast(q)
}

// Watchlist returns a copy of the current watchlist.
func (s *Server) Watchlist() []string {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return append([]string(nil), s.watchlist...)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
