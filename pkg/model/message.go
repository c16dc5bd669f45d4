package model

import "time"

type MessageType string

const (
	// Client -> gateway.
	TypeSend MessageType = "send"

	// Gateway -> client.
	TypeMessage MessageType = "message"
	TypeAck     MessageType = "ack"
	TypeError   MessageType = "error"
)

// Message is one chat line between two users about one listing.
type Message struct {
	ID          int64     `json:"id,string"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	ListingID   string    `json:"listing_id"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Before reports whether m was stored before o. Ties on the timestamp fall
// back to the id, which is assigned in insertion order.
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}

// Counterpart returns the party of m that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Involves reports whether userID sent or received m.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// ConversationRef names a conversation: two users and a listing. The order of
// UserA and UserB carries no meaning.
type ConversationRef struct {
	UserA     string `json:"user_a"`
	UserB     string `json:"user_b"`
	ListingID string `json:"listing_id"`
}

// Has reports whether userID is one of the two parties.
func (r ConversationRef) Has(userID string) bool {
	return userID != "" && (r.UserA == userID || r.UserB == userID)
}

// Matches reports whether m belongs to the conversation.
func (r ConversationRef) Matches(m *Message) bool {
	if m.ListingID != r.ListingID {
		return false
	}
	return (m.SenderID == r.UserA && m.RecipientID == r.UserB) ||
		(m.SenderID == r.UserB && m.RecipientID == r.UserA)
}

// Other returns the party of r that is not userID.
func (r ConversationRef) Other(userID string) string {
	if r.UserA == userID {
		return r.UserB
	}
	return r.UserA
}
