package main

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mahaj/carmarket-chat/pkg/chat"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeChatError maps conversation core errors to responses. Anything
// unrecognised is logged and reported as a bare 500.
func (s *server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case chat.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("user", actor(r)).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
