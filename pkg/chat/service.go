package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

// Directory resolves the display identity of a user. It only decorates
// conversation lists; a failed lookup never fails the request.
type Directory interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
}

// Service is the request-side entry point to the conversation core. Every
// method validates and authorizes before touching the store.
type Service struct {
	store  Store
	guard  Guard
	dir    Directory
	logger zerolog.Logger
}

func NewService(store Store, dir Directory, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		dir:    dir,
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// Send persists a message from actor. It returns only after the store has
// accepted the message.
func (s *Service) Send(ctx context.Context, actor, recipientID, listingID, body string) (*model.Message, error) {
	body, err := ValidateMessage(actor, recipientID, listingID, body)
	if err != nil {
		return nil, err
	}
	ref := model.ConversationRef{UserA: actor, UserB: recipientID, ListingID: listingID}
	if err := s.guard.CanAccess(actor, ref, OpSend); err != nil {
		return nil, err
	}
	msg, err := s.store.Append(ctx, actor, recipientID, listingID, body)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Int64("message_id", msg.ID).
		Str("sender", actor).
		Str("recipient", recipientID).
		Str("listing", listingID).
		Msg("message stored")
	return msg, nil
}

// History returns the conversation oldest first.
func (s *Service) History(ctx context.Context, actor string, ref model.ConversationRef) ([]model.Message, error) {
	if err := s.guard.CanAccess(actor, ref, OpRead); err != nil {
		return nil, err
	}
	return s.store.ListBetween(ctx, ref.UserA, ref.UserB, ref.ListingID)
}

// Conversations lists actor's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, actor string) ([]model.Conversation, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	msgs, err := s.store.ListForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	convs := Aggregate(actor, msgs)
	if s.dir == nil {
		return convs, nil
	}

	seen := make(map[string]*model.Profile)
	for i := range convs {
		id := convs[i].CounterpartID
		p, ok := seen[id]
		if !ok {
			p, err = s.dir.Profile(ctx, id)
			if err != nil {
				s.logger.Warn().Err(err).Str("user", id).Msg("profile lookup failed")
				p = nil
			}
			seen[id] = p
		}
		convs[i].Counterpart = p
	}
	return convs, nil
}

// MarkConversationRead flags every message the counterpart sent to actor in
// the conversation as read. A conversation with nothing unread is a no-op.
func (s *Service) MarkConversationRead(ctx context.Context, actor string, ref model.ConversationRef) (int, error) {
	if err := s.guard.CanAccess(actor, ref, OpMarkRead); err != nil {
		return 0, err
	}
	return s.store.MarkRead(ctx, actor, ref.Other(actor), ref.ListingID)
}

// DeleteConversation removes the conversation for both parties.
func (s *Service) DeleteConversation(ctx context.Context, actor string, ref model.ConversationRef) (int, error) {
	if err := s.guard.CanAccess(actor, ref, OpDelete); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteConversation(ctx, ref.UserA, ref.UserB, ref.ListingID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().
			Str("actor", actor).
			Str("listing", ref.ListingID).
			Int("deleted", n).
			Msg("conversation deleted")
	}
	return n, nil
}
