package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mahaj/carmarket-chat/pkg/auth"
	"github.com/mahaj/carmarket-chat/pkg/chat"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest frame accepted from the peer. A maximal body is 2000 runes of
	// up to four bytes each, plus the envelope.
	maxFrameSize = 16 << 10

	// Bound on a single send issued from the socket. It is detached from the
	// socket, so a client that drops mid-send does not abort the append.
	sendTimeout = 10 * time.Second
)

// Handler upgrades authenticated requests to websocket connections served
// by a Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler builds a websocket handler. An empty origins list, or one
// containing "*", accepts any origin.
func NewHandler(h *Hub, origins []string) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (wh *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := wh.hub.Connect(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		if errors.Is(err, chat.ErrUnauthenticated) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ws, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wh.hub.logger.Debug().Err(err).Str("user", c.UserID).Msg("upgrade failed")
		wh.hub.Disconnect(c)
		return
	}

	go wh.writePump(c, ws)
	go wh.readPump(c, ws)
}

// readPump feeds client frames to the hub until the socket fails.
func (wh *Handler) readPump(c *Connection, ws *websocket.Conn) {
	defer func() {
		wh.hub.Disconnect(c)
		ws.Close()
	}()
	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				wh.hub.logger.Debug().Err(err).Str("conn", c.ID).Msg("read failed")
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		wh.hub.HandleFrame(ctx, c, raw)
		cancel()
	}
}

// writePump drains the connection's outbound queue to the socket, one
// websocket message per frame.
func (wh *Handler) writePump(c *Connection, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case frame := <-c.Outbound():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				wh.hub.Disconnect(c)
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				wh.hub.Disconnect(c)
				return
			}
			wh.hub.Heartbeat(c)
		case <-c.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
