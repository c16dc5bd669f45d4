package chat

import "github.com/mahaj/carmarket-chat/pkg/model"

// Op names what the acting user is trying to do with a conversation.
type Op string

const (
	OpRead     Op = "read"
	OpSend     Op = "send"
	OpMarkRead Op = "mark_read"
	OpDelete   Op = "delete"
)

// Guard decides whether a user may touch a conversation. It holds no state
// and is evaluated on every call.
type Guard struct{}

// CanAccess allows the operation only when actor is one of the two parties
// of ref. Every failure is reported as ErrForbidden, including malformed refs,
// so callers cannot discover conversations between other users.
func (Guard) CanAccess(actor string, ref model.ConversationRef, op Op) error {
	if actor == "" || ref.ListingID == "" || ref.UserA == "" || ref.UserB == "" {
		return ErrForbidden
	}
	if ref.UserA == ref.UserB {
		return ErrForbidden
	}
	if !ref.Has(actor) {
		return ErrForbidden
	}
	switch op {
	case OpRead, OpSend, OpMarkRead, OpDelete:
		return nil
	}
	return ErrForbidden
}
