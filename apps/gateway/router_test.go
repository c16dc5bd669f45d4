package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/auth"
	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/hub"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

func newTestHub(t *testing.T) (*hub.Hub, *auth.Authenticator) {
	t.Helper()
	ids, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatal(err)
	}
	a := auth.NewAuthenticator("test-secret", time.Hour)
	h := hub.New(hub.Options{
		Service: chat.NewService(chat.NewMemoryStore(ids), nil, zerolog.Nop()),
		Tokens:  a,
		Logger:  zerolog.Nop(),
	})
	return h, a
}

func health(t *testing.T, router http.Handler) healthResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var got healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestHealthCountsConnectedUsers(t *testing.T) {
	t.Parallel()
	h, a := newTestHub(t)
	router := newRouter(h, []string{"*"})

	if got := health(t, router); got.Status != "ok" || got.Users != 0 {
		t.Fatalf("health = %+v", got)
	}

	token, err := a.GenerateToken("dealer", "dealership")
	if err != nil {
		t.Fatal(err)
	}
	c, err := h.Connect(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if got := health(t, router); got.Users != 1 {
		t.Fatalf("health after connect = %+v", got)
	}
	h.Disconnect(c)
	if got := health(t, router); got.Users != 0 {
		t.Fatalf("health after disconnect = %+v", got)
	}
}

func TestWebsocketRequiresToken(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub(t)
	router := newRouter(h, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
