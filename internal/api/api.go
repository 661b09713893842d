// Package api exposes the HTTP surface: the chat endpoint, the billing
// webhook, portal session exchange, and transcript export.
package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/copydesk-io/copydesk/internal/archive"
	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/billing"
	"github.com/copydesk-io/copydesk/internal/chat"
	"github.com/copydesk-io/copydesk/internal/config"
	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Api struct {
	Config   *config.Config
	Router   *chi.Mux
	store    *database.Store
	pipeline *chat.Pipeline
	billing  *billing.Processor
	sessions *auth.TokenManager
	archive  *archive.Client
}

// NewApi wires the router. archiveClient may be nil when no bucket is
// configured; exports are then returned inline.
func NewApi(cfg *config.Config, store *database.Store, pipeline *chat.Pipeline, processor *billing.Processor, sessions *auth.TokenManager, archiveClient *archive.Client) (*Api, error) {
	api := &Api{
		Config:   cfg,
		Router:   chi.NewRouter(),
		store:    store,
		pipeline: pipeline,
		billing:  processor,
		sessions: sessions,
		archive:  archiveClient,
	}
	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://*.local:*", "http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/heartbeat"))

	// Public routes
	r.Post("/api/chat", api.ChatHandler)
	r.Post("/webhooks/billing", api.BillingWebhookHandler)
	r.Post("/auth/session", api.SessionHandler)

	// Portal routes behind a session JWT
	r.Group(func(r chi.Router) {
		r.Use(api.SessionAuthMiddleware)
		r.Get("/api/export", api.ExportHandler)
	})
}

func (api *Api) Serve() {
	log.Printf("Starting API server on 0.0.0.0:%d", api.Config.APIPort)
	log.Fatal(http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort), api.Router))
}
