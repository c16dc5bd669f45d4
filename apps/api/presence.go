package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type presenceResponse struct {
	UserID      string `json:"user_id"`
	Online      bool   `json:"online"`
	Connections int64  `json:"connections"`
}

func (s *server) presenceOf(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	n, err := s.presence.Connections(r.Context(), userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", userID).Msg("presence lookup failed")
		writeError(w, http.StatusServiceUnavailable, "presence unavailable")
		return
	}
	writeJSON(w, http.StatusOK, presenceResponse{UserID: userID, Online: n > 0, Connections: n})
}
