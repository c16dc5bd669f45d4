package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahaj/carmarket-chat/pkg/hub"
	"github.com/mahaj/carmarket-chat/pkg/metrics"
)

type healthResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
}

func newRouter(h *hub.Hub, origins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Handle("/ws", hub.NewHandler(h, origins))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{Status: "ok", Users: h.Users()})
	})
	return r
}
