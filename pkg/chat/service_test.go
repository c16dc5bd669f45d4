package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

type mapDirectory map[string]*model.Profile

func (d mapDirectory) Profile(_ context.Context, id string) (*model.Profile, error) {
	if p, ok := d[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := mapDirectory{"bob": {UserID: "bob", DisplayName: "Bob's Autos", Role: "dealership", CompanyName: "Bob's Autos Ltd"}}
	return NewService(newTestStore(t), dir, zerolog.Nop())
}

func TestReplyScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	ref := model.ConversationRef{UserA: "alice", UserB: "bob", ListingID: "L1"}

	if _, err := svc.Send(ctx, "alice", "bob", "L1", "Hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, "bob", "alice", "L1", "Interested!"); err != nil {
		t.Fatal(err)
	}

	hist, err := svc.History(ctx, "alice", ref)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Body != "Hi" || hist[1].Body != "Interested!" {
		t.Fatalf("history: got %+v", hist)
	}

	convs, err := svc.Conversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations: got %d, want 1", len(convs))
	}
	c := convs[0]
	if c.CounterpartID != "bob" || c.LastMessage.Body != "Interested!" || c.UnreadCount != 1 {
		t.Errorf("conversation row: got %+v", c)
	}
	if c.Counterpart == nil || c.Counterpart.CompanyName != "Bob's Autos Ltd" {
		t.Errorf("counterpart profile: got %+v", c.Counterpart)
	}

	n, err := svc.MarkConversationRead(ctx, "alice", ref)
	if err != nil || n != 1 {
		t.Fatalf("MarkConversationRead: got %d, %v; want 1", n, err)
	}
	convs, _ = svc.Conversations(ctx, "alice")
	if convs[0].UnreadCount != 0 {
		t.Errorf("unread after mark: got %d, want 0", convs[0].UnreadCount)
	}
	n, err = svc.MarkConversationRead(ctx, "alice", ref)
	if err != nil || n != 0 {
		t.Errorf("repeat mark: got %d, %v; want 0", n, err)
	}
}

func TestThirdPartyForbidden(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	ref := model.ConversationRef{UserA: "alice", UserB: "bob", ListingID: "L1"}
	svc.Send(ctx, "alice", "bob", "L1", "Hi")

	if _, err := svc.History(ctx, "mallory", ref); !errors.Is(err, ErrForbidden) {
		t.Errorf("History: got %v", err)
	}
	if _, err := svc.MarkConversationRead(ctx, "mallory", ref); !errors.Is(err, ErrForbidden) {
		t.Errorf("MarkConversationRead: got %v", err)
	}
	if _, err := svc.DeleteConversation(ctx, "mallory", ref); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteConversation: got %v", err)
	}
	// Forbidden for a conversation that does not exist either.
	empty := model.ConversationRef{UserA: "carol", UserB: "dave", ListingID: "L9"}
	if _, err := svc.History(ctx, "mallory", empty); !errors.Is(err, ErrForbidden) {
		t.Errorf("History on empty pair: got %v", err)
	}

	hist, _ := svc.History(ctx, "bob", ref)
	if len(hist) != 1 {
		t.Errorf("denied calls changed state: %d messages", len(hist))
	}
}

func TestSendValidationBeforeStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Send(ctx, "alice", "alice", "L1", "me"); !IsValidation(err) {
		t.Errorf("self send: got %v, want ValidationError", err)
	}
	if _, err := svc.Send(ctx, "alice", "bob", "L1", ""); !IsValidation(err) {
		t.Errorf("empty send: got %v, want ValidationError", err)
	}
	if convs, _ := svc.Conversations(ctx, "alice"); len(convs) != 0 {
		t.Errorf("invalid sends created %d conversations", len(convs))
	}
}

func TestDeleteScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	ref := model.ConversationRef{UserA: "bob", UserB: "alice", ListingID: "L1"}
	for i := 0; i < 5; i++ {
		if i%2 == 0 {
			svc.Send(ctx, "alice", "bob", "L1", "a")
		} else {
			svc.Send(ctx, "bob", "alice", "L1", "b")
		}
	}

	n, err := svc.DeleteConversation(ctx, "bob", ref)
	if err != nil || n != 5 {
		t.Fatalf("DeleteConversation: got %d, %v; want 5", n, err)
	}
	if hist, _ := svc.History(ctx, "alice", ref); len(hist) != 0 {
		t.Errorf("history after delete: %d messages", len(hist))
	}
	for _, u := range []string{"alice", "bob"} {
		if convs, _ := svc.Conversations(ctx, u); len(convs) != 0 {
			t.Errorf("%s still lists %d conversations", u, len(convs))
		}
	}
}

func TestConversationsWithoutDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(newTestStore(t), nil, zerolog.Nop())
	svc.Send(ctx, "alice", "bob", "L1", "Hi")
	convs, err := svc.Conversations(ctx, "bob")
	if err != nil || len(convs) != 1 || convs[0].Counterpart != nil {
		t.Errorf("got %+v, %v", convs, err)
	}
	if _, err := svc.Conversations(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous: got %v", err)
	}
}
