package main

import (
	"encoding/json"
	"net/http"

	"github.com/mahaj/carmarket-chat/pkg/auth"
)

type LoginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// login issues a token for any user id. It is only routed in development;
// production tokens come from the marketplace's account service.
func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = "buyer"
	}

	token, err := s.auth.GenerateToken(req.UserID, req.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("generate token")
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ValidateToken(auth.TokenFromRequest(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// actor returns the authenticated user id set by requireAuth.
func actor(r *http.Request) string {
	if c, ok := auth.ClaimsFrom(r.Context()); ok {
		return c.UserID
	}
	return ""
}
