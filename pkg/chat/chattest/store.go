// Package chattest holds behaviour tests shared by every chat.Store backend.
package chattest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mahaj/carmarket-chat/pkg/chat"
)

// RunStoreTests exercises a store against the contract of chat.Store. Each
// subtest uses fresh user and listing ids so backends may share state.
func RunStoreTests(t *testing.T, store chat.Store) {
	t.Run("AppendThenList", func(t *testing.T) { testAppendThenList(t, store) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, store) })
	t.Run("MarkReadIdempotent", func(t *testing.T) { testMarkRead(t, store) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, store) })
	t.Run("ListForUser", func(t *testing.T) { testListForUser(t, store) })
	t.Run("ConcurrentBothDirections", func(t *testing.T) { testConcurrent(t, store) })
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.NewString()
	}
	return out
}

func testAppendThenList(t *testing.T, s chat.Store) {
	ctx := context.Background()
	u := ids(3)
	a, b, listing := u[0], u[1], u[2]

	for i := 0; i < 3; i++ {
		m, err := s.Append(ctx, a, b, listing, fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := s.ListBetween(ctx, b, a, listing)
		if err != nil {
			t.Fatalf("ListBetween: %v", err)
		}
		if len(got) != i+1 || got[len(got)-1].ID != m.ID {
			t.Fatalf("after append %d: new message is not last in %+v", i, got)
		}
		if got[len(got)-1].Read {
			t.Fatal("new message already read")
		}
	}
}

func testValidation(t *testing.T, s chat.Store) {
	ctx := context.Background()
	u := ids(2)
	if _, err := s.Append(ctx, u[0], u[0], u[1], "self"); !chat.IsValidation(err) {
		t.Errorf("self message: got %v", err)
	}
	if _, err := s.Append(ctx, u[0], uuid.NewString(), u[1], ""); !chat.IsValidation(err) {
		t.Errorf("empty body: got %v", err)
	}
}

func testMarkRead(t *testing.T, s chat.Store) {
	ctx := context.Background()
	u := ids(3)
	a, b, listing := u[0], u[1], u[2]
	s.Append(ctx, b, a, listing, "one")
	s.Append(ctx, b, a, listing, "two")
	s.Append(ctx, a, b, listing, "mine")

	if n, err := s.MarkRead(ctx, a, b, listing); err != nil || n != 2 {
		t.Fatalf("first MarkRead: got %d, %v; want 2", n, err)
	}
	if n, err := s.MarkRead(ctx, a, b, listing); err != nil || n != 0 {
		t.Fatalf("second MarkRead: got %d, %v; want 0", n, err)
	}
	msgs, _ := s.ListBetween(ctx, a, b, listing)
	for _, m := range msgs {
		if m.RecipientID == a && !m.Read {
			t.Errorf("message %d to %s still unread", m.ID, a)
		}
		if m.RecipientID == b && m.Read {
			t.Errorf("message %d to %s marked read", m.ID, b)
		}
	}
}

func testDelete(t *testing.T, s chat.Store) {
	ctx := context.Background()
	u := ids(3)
	a, b, listing := u[0], u[1], u[2]
	for i := 0; i < 5; i++ {
		s.Append(ctx, a, b, listing, "hello")
	}
	if n, err := s.DeleteConversation(ctx, b, a, listing); err != nil || n != 5 {
		t.Fatalf("DeleteConversation: got %d, %v; want 5", n, err)
	}
	if msgs, _ := s.ListBetween(ctx, a, b, listing); len(msgs) != 0 {
		t.Errorf("%d messages left after delete", len(msgs))
	}
	if n, err := s.DeleteConversation(ctx, a, b, listing); err != nil || n != 0 {
		t.Errorf("repeat delete: got %d, %v; want 0", n, err)
	}
	if msgs, _ := s.ListForUser(ctx, a); len(msgs) != 0 {
		t.Errorf("ListForUser after delete: %d messages", len(msgs))
	}
}

func testListForUser(t *testing.T, s chat.Store) {
	ctx := context.Background()
	u := ids(5)
	me, x, y, l1, l2 := u[0], u[1], u[2], u[3], u[4]
	s.Append(ctx, me, x, l1, "a")
	s.Append(ctx, y, me, l1, "b")
	s.Append(ctx, x, me, l2, "c")
	s.Append(ctx, x, y, l1, "not mine")

	msgs, err := s.ListForUser(ctx, me)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("ListForUser: got %d messages, want 3", len(msgs))
	}
	for _, m := range msgs {
		if !m.Involves(me) {
			t.Errorf("foreign message %+v", m)
		}
	}
	convs := chat.Aggregate(me, msgs)
	if len(convs) != 3 {
		t.Errorf("Aggregate: got %d rows, want 3", len(convs))
	}
}

func testConcurrent(t *testing.T, s chat.Store) {
	ctx := context.Background()
	u := ids(3)
	a, b, listing := u[0], u[1], u[2]
	const per = 25

	var wg sync.WaitGroup
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		pair := pair
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				if _, err := s.Append(ctx, pair[0], pair[1], listing, fmt.Sprintf("%03d", i)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	msgs, err := s.ListBetween(ctx, a, b, listing)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2*per {
		t.Fatalf("got %d messages, want %d", len(msgs), 2*per)
	}
	last := map[string]string{}
	for i := range msgs {
		if i > 0 && !msgs[i-1].Before(&msgs[i]) {
			t.Fatalf("messages %d and %d out of order", i-1, i)
		}
		m := msgs[i]
		if prev, ok := last[m.SenderID]; ok && prev >= m.Body {
			t.Fatalf("sender %s reordered: %q after %q", m.SenderID, m.Body, prev)
		}
		last[m.SenderID] = m.Body
	}
}
