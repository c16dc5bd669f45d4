package chat

import (
	"sort"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

// ConversationKey groups a user's messages into conversations.
type ConversationKey struct {
	ListingID     string
	CounterpartID string
}

// Aggregate folds userID's messages into one row per (listing, counterpart),
// newest conversation first. Messages not involving userID are ignored.
//
// The whole message set is scanned on every call; cost grows with the number
// of messages the user has.
func Aggregate(userID string, msgs []model.Message) []model.Conversation {
	type group struct {
		last   *model.Message
		unread int
	}
	groups := make(map[ConversationKey]*group)

	for i := range msgs {
		m := &msgs[i]
		if !m.Involves(userID) || m.SenderID == m.RecipientID {
			continue
		}
		key := ConversationKey{ListingID: m.ListingID, CounterpartID: m.Counterpart(userID)}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		if g.last == nil || g.last.Before(m) {
			g.last = m
		}
		if m.RecipientID == userID && !m.Read {
			g.unread++
		}
	}

	out := make([]model.Conversation, 0, len(groups))
	for key, g := range groups {
		out = append(out, model.Conversation{
			CounterpartID: key.CounterpartID,
			ListingID:     key.ListingID,
			LastMessage:   model.Summarize(g.last),
			UnreadCount:   g.unread,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}
