package chat

import (
	"testing"
	"time"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

func msg(id int64, from, to, listing string, at time.Time, read bool) model.Message {
	return model.Message{ID: id, SenderID: from, RecipientID: to, ListingID: listing, Body: "b", CreatedAt: at, Read: read}
}

func TestAggregateThreeConversations(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

	msgs := []model.Message{
		msg(1, "bob", "me", "car-1", at(1), false),
		msg(2, "me", "bob", "car-1", at(2), false),
		msg(3, "bob", "me", "car-1", at(3), false),
		msg(4, "carol", "me", "car-1", at(4), true),
		msg(5, "carol", "me", "car-1", at(5), false),
		msg(6, "bob", "me", "car-2", at(10), false),
		msg(7, "me", "bob", "car-2", at(11), false),
		// Not ours.
		msg(8, "bob", "carol", "car-1", at(20), false),
	}

	got := Aggregate("me", msgs)
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3: %+v", len(got), got)
	}

	want := []struct {
		counterpart, listing string
		last                 int64
		unread               int
	}{
		{"bob", "car-2", 7, 1},
		{"carol", "car-1", 5, 1},
		{"bob", "car-1", 3, 2},
	}
	for i, w := range want {
		c := got[i]
		if c.CounterpartID != w.counterpart || c.ListingID != w.listing {
			t.Errorf("row %d: got %s/%s, want %s/%s", i, c.CounterpartID, c.ListingID, w.counterpart, w.listing)
		}
		if c.LastMessage.ID != w.last {
			t.Errorf("row %d last message: got %d, want %d", i, c.LastMessage.ID, w.last)
		}
		if c.UnreadCount != w.unread {
			t.Errorf("row %d unread: got %d, want %d", i, c.UnreadCount, w.unread)
		}
	}
}

func TestAggregateTimestampTieUsesID(t *testing.T) {
	t.Parallel()
	same := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Aggregate("me", []model.Message{
		msg(20, "me", "bob", "car-1", same, false),
		msg(10, "bob", "me", "car-1", same, false),
		msg(15, "carol", "me", "car-9", same, false),
	})
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].LastMessage.ID != 20 || got[1].LastMessage.ID != 15 {
		t.Errorf("tie-break: got %d then %d, want 20 then 15", got[0].LastMessage.ID, got[1].LastMessage.ID)
	}
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()
	if got := Aggregate("me", nil); len(got) != 0 {
		t.Errorf("got %d rows for no messages", len(got))
	}
}
