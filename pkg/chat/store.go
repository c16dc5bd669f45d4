package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

// MaxBodyLength bounds a message body, in characters.
const MaxBodyLength = 2000

// Store is the durable message log. Implementations must make an appended
// message visible to every later read before Append returns, and must flip
// each row's read flag at most once.
type Store interface {
	Append(ctx context.Context, senderID, recipientID, listingID, body string) (*model.Message, error)
	ListBetween(ctx context.Context, userA, userB, listingID string) ([]model.Message, error)
	MarkRead(ctx context.Context, recipientID, senderID, listingID string) (int, error)
	DeleteConversation(ctx context.Context, userA, userB, listingID string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]model.Message, error)
}

// ValidateMessage checks an outgoing message and returns the body as it
// will be stored.
func ValidateMessage(senderID, recipientID, listingID, body string) (string, error) {
	switch {
	case senderID == "":
		return "", invalid("sender_id", "required")
	case recipientID == "":
		return "", invalid("recipient_id", "required")
	case listingID == "":
		return "", invalid("listing_id", "required")
	case senderID == recipientID:
		return "", invalid("recipient_id", "cannot message yourself")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", invalid("body", "required")
	}
	if !utf8.ValidString(body) {
		return "", invalid("body", "must be valid UTF-8")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return "", invalid("body", "too long")
	}
	return body, nil
}

// PairKey orders two user ids so both directions of a conversation share
// one storage key.
func PairKey(userA, userB string) (lo, hi string) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}
