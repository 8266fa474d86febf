// Package server provides the public entry point for initializing the
// WagerProof server.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wagerproof/wagerproof/internal/api"
	"github.com/wagerproof/wagerproof/internal/api/handlers"
	"github.com/wagerproof/wagerproof/internal/api/middleware"
	"github.com/wagerproof/wagerproof/internal/clients/model"
	"github.com/wagerproof/wagerproof/internal/clients/scores"
	"github.com/wagerproof/wagerproof/internal/config"
	"github.com/wagerproof/wagerproof/internal/generate"
	"github.com/wagerproof/wagerproof/internal/grading"
	"github.com/wagerproof/wagerproof/internal/pickschema"
	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized WagerProof service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store.
	Store store.Store

	// Scheduler runs the periodic grading sweep; nil when disabled.
	Scheduler *grading.Scheduler

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration and
// returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore()
	log.Info().Msg("In-memory store initialized")

	validator, err := pickschema.New()
	if err != nil {
		return nil, fmt.Errorf("compile pick schema: %w", err)
	}

	// Model provider behind a circuit breaker.
	var modelClient model.Client = model.NewHTTPClient(cfg.Model)
	modelClient = model.NewBreakerClient(modelClient)
	log.Info().Str("provider", cfg.Model.Kind).Str("model", cfg.Model.Model).Msg("Model client initialized")

	orchestrator := generate.New(dataStore, modelClient, validator, cfg.Model.Timeout)

	// Scores feed is optional: without one, grading relies on games marked
	// final through the admin API.
	var feed scores.Client
	if cfg.Scores.Endpoint != "" {
		feed = scores.NewHTTPClient(cfg.Scores)
		log.Info().Str("endpoint", cfg.Scores.Endpoint).Msg("Scores feed initialized")
	}
	grader := grading.New(dataStore, feed)

	var scheduler *grading.Scheduler
	if cfg.Grading.Enabled {
		scheduler, err = grading.NewScheduler(grader, cfg.Grading.Schedule)
		if err != nil {
			return nil, fmt.Errorf("init grading scheduler: %w", err)
		}
	}

	h := handlers.New(dataStore, orchestrator, grader)
	auth := middleware.NewAuth(dataStore)
	router := api.NewRouter(cfg, h, auth)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Scheduler:    scheduler,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
