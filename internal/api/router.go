package api

import (
	"encoding/json"
	"net/http"

	"github.com/wagerproof/wagerproof/internal/api/handlers"
	"github.com/wagerproof/wagerproof/internal/api/middleware"
	"github.com/wagerproof/wagerproof/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, auth *middleware.Auth) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1 — everything below requires an authenticated account.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Handler)

		// Agents
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Put("/", h.UpdateAgent)
				r.Delete("/", h.DeleteAgent)

				// Picks
				r.Route("/picks", func(r chi.Router) {
					r.Get("/", h.ListAgentPicks)
					r.Post("/generate", h.GeneratePicks)
				})
			})
		})

		// Leaderboard
		r.Get("/leaderboard", h.Leaderboard)

		// Grading (admin)
		r.Post("/grading/run", h.RunGrading)

		// Games
		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.ListGames)
			r.Post("/", h.CreateGame)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "wagerproof-server",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "wagerproof-server",
		})
	}
}
