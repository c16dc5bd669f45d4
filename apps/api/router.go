package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/auth"
	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/logging"
	"github.com/mahaj/carmarket-chat/pkg/metrics"
)

// maxBody bounds request bodies. No endpoint takes more than a user id.
const maxBody = 8 << 10

// PresenceLookup counts a user's live connections across gateways.
type PresenceLookup interface {
	Connections(ctx context.Context, userID string) (int64, error)
}

type routerConfig struct {
	Chat     *chat.Service
	Auth     *auth.Authenticator
	Presence PresenceLookup
	Origins  []string
	DevLogin bool
	Logger   zerolog.Logger
}

type server struct {
	chat     *chat.Service
	auth     *auth.Authenticator
	presence PresenceLookup
	logger   zerolog.Logger
}

func newRouter(cfg routerConfig) *chi.Mux {
	s := &server{
		chat:     cfg.Chat,
		auth:     cfg.Auth,
		presence: cfg.Presence,
		logger:   cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Middleware(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestSize(maxBody))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.health)
	if cfg.DevLogin {
		r.Post("/login", s.login)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/conversations", s.listConversations)
		r.Route("/conversations/{counterpartID}/listings/{listingID}", func(r chi.Router) {
			r.Get("/messages", s.history)
			r.Post("/read", s.markRead)
			r.Delete("/", s.deleteConversation)
		})
		r.Get("/presence/{userID}", s.presenceOf)
	})
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
