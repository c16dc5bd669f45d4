// Package hub tracks live client connections and pushes newly stored
// messages to every connection of the recipient.
package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mahaj/carmarket-chat/pkg/auth"
	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/metrics"
	"github.com/mahaj/carmarket-chat/pkg/model"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrRateLimited      = errors.New("rate limited")
)

const (
	defaultPushBuffer = 256
	publishTimeout    = 2 * time.Second
	presenceTimeout   = time.Second
)

// TokenValidator turns a bearer credential into claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Publisher hands a stored message to the cross-instance fan-out. When a
// hub has a publisher, local delivery happens when the message comes back
// through the fan-out consumer, or directly if the publish fails.
type Publisher interface {
	Publish(ctx context.Context, msg *model.Message) error
}

// Presence records which users have live connections. Entries expire unless
// refreshed, so live connections call Refresh periodically.
type Presence interface {
	Add(ctx context.Context, userID, connID string) error
	Refresh(ctx context.Context, userID, connID string) error
	Remove(ctx context.Context, userID, connID string) error
}

type Options struct {
	Service   *chat.Service
	Tokens    TokenValidator
	Publisher Publisher // optional
	Presence  Presence  // optional

	// SendRate and SendBurst throttle send frames per connection. A zero
	// SendRate disables throttling.
	SendRate   float64
	SendBurst  int
	PushBuffer int

	Logger zerolog.Logger
}

type Hub struct {
	svc       *chat.Service
	tokens    TokenValidator
	publisher Publisher
	presence  Presence
	registry  Registry

	sendRate   rate.Limit
	sendBurst  int
	pushBuffer int

	logger zerolog.Logger
}

func New(opts Options) *Hub {
	h := &Hub{
		svc:        opts.Service,
		tokens:     opts.Tokens,
		publisher:  opts.Publisher,
		presence:   opts.Presence,
		sendRate:   rate.Inf,
		sendBurst:  opts.SendBurst,
		pushBuffer: opts.PushBuffer,
		logger:     opts.Logger.With().Str("component", "hub").Logger(),
	}
	if opts.SendRate > 0 {
		h.sendRate = rate.Limit(opts.SendRate)
	}
	if h.sendBurst <= 0 {
		h.sendBurst = 1
	}
	if h.pushBuffer <= 0 {
		h.pushBuffer = defaultPushBuffer
	}
	return h
}

// Connect authenticates credential and registers a new active connection
// for its user. A rejected credential never reaches the registry.
func (h *Hub) Connect(ctx context.Context, credential string) (*Connection, error) {
	c := newConnection(uuid.NewString(), h.pushBuffer, rate.NewLimiter(h.sendRate, h.sendBurst))

	claims, err := h.tokens.ValidateToken(credential)
	if err != nil {
		c.close()
		return nil, errors.Wrap(chat.ErrUnauthenticated, err.Error())
	}
	c.UserID = claims.UserID
	c.transition(StateConnecting, StateAuthenticated)

	h.registry.Add(c)
	c.transition(StateAuthenticated, StateActive)
	metrics.ActiveConnections.Inc()

	if h.presence != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presenceTimeout)
		defer cancel()
		if err := h.presence.Add(pctx, c.UserID, c.ID); err != nil {
			h.logger.Warn().Err(err).Str("user", c.UserID).Msg("presence add failed")
		}
	}

	h.logger.Info().Str("user", c.UserID).Str("conn", c.ID).Msg("connection registered")
	return c, nil
}

// Disconnect unregisters c. Repeated calls are no-ops.
func (h *Hub) Disconnect(c *Connection) {
	prev, first := c.close()
	if !first {
		return
	}
	if !h.registry.Remove(c) {
		return
	}
	if prev == StateActive {
		metrics.ActiveConnections.Dec()
	}

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := h.presence.Remove(ctx, c.UserID, c.ID); err != nil {
			h.logger.Warn().Err(err).Str("user", c.UserID).Msg("presence remove failed")
		}
	}
	h.logger.Info().Str("user", c.UserID).Str("conn", c.ID).Msg("connection closed")
}

// Send stores a message from c's user and pushes it to the recipient's live
// connections. The message is durable once Send returns without error; a
// failed push is never reported to the sender.
func (h *Hub) Send(ctx context.Context, c *Connection, recipientID, listingID, body string) (*model.Message, error) {
	if c.State() != StateActive {
		return nil, ErrConnectionClosed
	}
	if !c.limiter.Allow() {
		metrics.SendRejected.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	msg, err := h.svc.Send(ctx, c.UserID, recipientID, listingID, body)
	if err != nil {
		metrics.SendRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	metrics.MessagesSent.Inc()

	h.push(msg)
	return msg, nil
}

func (h *Hub) push(msg *model.Message) {
	if h.publisher == nil {
		h.Deliver(msg)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, msg); err != nil {
		// Connections on this instance can still be reached directly.
		metrics.FanoutPublishFailures.Inc()
		h.logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("fan-out publish failed, delivering locally")
		h.Deliver(msg)
	}
}

// Deliver queues msg on every live connection of its recipient and returns
// how many accepted it. It never blocks: a connection whose buffer is full
// is closed, and its client catches up from history on reconnect.
func (h *Hub) Deliver(msg *model.Message) int {
	conns := h.registry.Lookup(msg.RecipientID)
	if len(conns) == 0 {
		return 0
	}
	frame, err := json.Marshal(model.Frame{Type: model.TypeMessage, Message: msg})
	if err != nil {
		h.logger.Error().Err(err).Int64("message_id", msg.ID).Msg("encode push")
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if c.enqueue(frame) {
			delivered++
			metrics.PushesDelivered.Inc()
			continue
		}
		if c.State() != StateActive {
			metrics.PushesDropped.WithLabelValues("closed").Inc()
			continue
		}
		metrics.PushesDropped.WithLabelValues("slow_consumer").Inc()
		h.logger.Warn().Str("user", c.UserID).Str("conn", c.ID).Msg("push buffer full, closing connection")
		h.Disconnect(c)
	}
	return delivered
}

// Reply queues a frame for c alone, such as an ack or error.
func (h *Hub) Reply(c *Connection, frame model.Frame) bool {
	b, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	return c.enqueue(b)
}

// HandleFrame processes one raw client frame read from c.
func (h *Hub) HandleFrame(ctx context.Context, c *Connection, raw []byte) {
	var in model.Frame
	if err := json.Unmarshal(raw, &in); err != nil {
		h.Reply(c, model.Frame{Type: model.TypeError, Error: model.CategoryBadFrame, Detail: "malformed json"})
		return
	}
	if in.Type != model.TypeSend {
		h.Reply(c, model.Frame{Type: model.TypeError, ClientRef: in.ClientRef, Error: model.CategoryBadFrame, Detail: "unsupported frame type"})
		return
	}

	msg, err := h.Send(ctx, c, in.RecipientID, in.ListingID, in.Body)
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			return
		}
		out := model.Frame{Type: model.TypeError, ClientRef: in.ClientRef, Error: errorCategory(err)}
		if chat.IsValidation(err) {
			out.Detail = err.Error()
		}
		if out.Error == model.CategoryInternal {
			h.logger.Error().Err(err).Str("user", c.UserID).Msg("send failed")
		}
		h.Reply(c, out)
		return
	}
	h.Reply(c, model.Frame{Type: model.TypeAck, ClientRef: in.ClientRef, Message: msg})
}

// Heartbeat keeps c's presence entry alive. The websocket transport calls
// it on every successful ping.
func (h *Hub) Heartbeat(c *Connection) {
	if h.presence == nil || c.State() != StateActive {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.presence.Refresh(ctx, c.UserID, c.ID); err != nil {
		h.logger.Warn().Err(err).Str("user", c.UserID).Msg("presence refresh failed")
	}
}

// Users counts users with at least one live connection on this instance.
func (h *Hub) Users() int {
	return h.registry.count()
}

func (h *Hub) online(userID string) int {
	return len(h.registry.Lookup(userID))
}

func errorCategory(err error) string {
	switch {
	case chat.IsValidation(err):
		return model.CategoryValidation
	case errors.Is(err, chat.ErrForbidden):
		return model.CategoryForbidden
	case errors.Is(err, ErrRateLimited):
		return model.CategoryRateLimited
	}
	return model.CategoryInternal
}

func rejectReason(err error) string {
	switch c := errorCategory(err); c {
	case model.CategoryInternal:
		return "store"
	default:
		return c
	}
}
