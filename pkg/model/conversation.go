package model

import "time"

// MessageSummary is the projection of the newest message shown in a
// conversation list row.
type MessageSummary struct {
	ID          int64     `json:"id,string"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Read        bool      `json:"read"`
}

func Summarize(m *Message) MessageSummary {
	return MessageSummary{
		ID:          m.ID,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Read:        m.Read,
	}
}

// Conversation is one row of a user's conversation list. It is derived from
// the message log on every request and never stored.
type Conversation struct {
	CounterpartID string         `json:"counterpart_id"`
	ListingID     string         `json:"listing_id"`
	LastMessage   MessageSummary `json:"last_message"`
	UnreadCount   int            `json:"unread_count"`
	Counterpart   *Profile       `json:"counterpart,omitempty"`
}

// Profile is the display identity of a marketplace user.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}
