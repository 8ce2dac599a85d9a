package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conorfennell/recall/internal/review"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	reviews  *review.Service
	syncer   *sync.Syncer
	router   chi.Router
	apiKey   string
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewServer creates and configures a new server. Every route except the
// health and metrics endpoints requires apiKey in the X-API-Key header.
func NewServer(db *storage.DB, reviews *review.Service, syncer *sync.Syncer, apiKey string, logger *slog.Logger) *Server {
	s := &Server{
		db:       db,
		reviews:  reviews,
		syncer:   syncer,
		router:   chi.NewRouter(),
		apiKey:   apiKey,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/due", s.handleListDue)

			r.Route("/decks", func(r chi.Router) {
				r.Get("/", s.handleListDecks)
				r.Post("/", s.handleCreateDeck)

				r.Route("/{deckID}", func(r chi.Router) {
					r.Get("/", s.handleGetDeck)
					r.Put("/", s.handleUpdateDeck)
					r.Delete("/", s.handleDeleteDeck)

					r.Get("/cards", s.handleListCards)
					r.Post("/cards", s.handleCreateCard)
					r.Route("/cards/{cardID}", func(r chi.Router) {
						r.Get("/", s.handleGetCard)
						r.Put("/", s.handleReplaceCard)
						r.Patch("/", s.handlePatchCard)
						r.Delete("/", s.handleDeleteCard)
						r.Post("/review", s.handleReview)
						r.Get("/preview", s.handlePreview)
						r.Get("/logs", s.handleListLogs)
					})
				})
			})
		})

		// Source management routes
		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleCreateSource)
		r.Delete("/sources/{sourceID}", s.handleDeleteSource)
		r.Post("/sync", s.handlePostSync)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
