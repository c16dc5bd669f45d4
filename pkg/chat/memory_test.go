package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	ids, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	return NewMemoryStore(ids)
}

func TestAppendThenListBetween(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Append(ctx, "alice", "bob", "car-1", "first"); err != nil {
		t.Fatal(err)
	}
	m, err := s.Append(ctx, "bob", "alice", "car-1", "  second  ")
	if err != nil {
		t.Fatal(err)
	}
	if m.Body != "second" {
		t.Errorf("stored body: got %q, want trimmed %q", m.Body, "second")
	}
	if m.Read {
		t.Error("new message is already read")
	}

	got, err := s.ListBetween(ctx, "alice", "bob", "car-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].ID != m.ID {
		t.Fatalf("ListBetween: got %+v, want new message last", got)
	}
	if !got[0].Before(&got[1]) {
		t.Error("ListBetween not in ascending order")
	}

	// Same pair, other listing.
	other, _ := s.ListBetween(ctx, "bob", "alice", "car-2")
	if len(other) != 0 {
		t.Errorf("car-2 history: got %d messages, want 0", len(other))
	}
}

func TestAppendValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	long := make([]rune, MaxBodyLength+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name                       string
		sender, recipient, listing string
		body                       string
	}{
		{"empty body", "a", "b", "l", ""},
		{"blank body", "a", "b", "l", " \n\t "},
		{"oversized body", "a", "b", "l", string(long)},
		{"self message", "a", "a", "l", "hi"},
		{"missing listing", "a", "b", "", "hi"},
	}
	for _, tt := range tests {
		if _, err := s.Append(ctx, tt.sender, tt.recipient, tt.listing, tt.body); !IsValidation(err) {
			t.Errorf("%s: got %v, want ValidationError", tt.name, err)
		}
	}
	all, _ := s.ListForUser(ctx, "a")
	if len(all) != 0 {
		t.Errorf("rejected appends were stored: %d messages", len(all))
	}

	// Exactly at the bound is fine.
	if _, err := s.Append(ctx, "a", "b", "l", string(long[:MaxBodyLength])); err != nil {
		t.Errorf("body at limit: %v", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		s.Append(ctx, "bob", "alice", "car-1", fmt.Sprintf("msg %d", i))
	}
	s.Append(ctx, "alice", "bob", "car-1", "reply")

	n, err := s.MarkRead(ctx, "alice", "bob", "car-1")
	if err != nil || n != 3 {
		t.Fatalf("first MarkRead: got %d, %v; want 3", n, err)
	}
	n, err = s.MarkRead(ctx, "alice", "bob", "car-1")
	if err != nil || n != 0 {
		t.Fatalf("second MarkRead: got %d, %v; want 0", n, err)
	}

	// Alice's own reply is still unread for bob.
	n, _ = s.MarkRead(ctx, "bob", "alice", "car-1")
	if n != 1 {
		t.Errorf("bob MarkRead: got %d, want 1", n)
	}
	n, _ = s.MarkRead(ctx, "alice", "carol", "car-1")
	if n != 0 {
		t.Errorf("MarkRead on empty conversation: got %d, want 0", n)
	}
}

func TestDeleteConversation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		s.Append(ctx, from, to, "car-1", "hello")
	}
	s.Append(ctx, "alice", "bob", "car-2", "keep me")

	n, err := s.DeleteConversation(ctx, "bob", "alice", "car-1")
	if err != nil || n != 5 {
		t.Fatalf("DeleteConversation: got %d, %v; want 5", n, err)
	}
	left, _ := s.ListBetween(ctx, "alice", "bob", "car-1")
	if len(left) != 0 {
		t.Errorf("after delete: %d messages remain", len(left))
	}
	n, err = s.DeleteConversation(ctx, "alice", "bob", "car-1")
	if err != nil || n != 0 {
		t.Errorf("repeat delete: got %d, %v; want 0, nil", n, err)
	}
	rest, _ := s.ListForUser(ctx, "alice")
	if len(rest) != 1 || rest[0].ListingID != "car-2" {
		t.Errorf("other conversation touched: %+v", rest)
	}
}

func TestConcurrentAppendsKeepOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	const per = 200

	var wg sync.WaitGroup
	for _, dir := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		dir := dir
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				if _, err := s.Append(ctx, dir[0], dir[1], "car-1", fmt.Sprintf("%s-%03d", dir[0], i)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := s.ListBetween(ctx, "alice", "bob", "car-1")
	if len(got) != 2*per {
		t.Fatalf("got %d messages, want %d", len(got), 2*per)
	}
	lastBySender := map[string]string{}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Before(&got[i]) {
			t.Fatalf("message %d not after message %d", i, i-1)
		}
	}
	for _, m := range got {
		if prev, ok := lastBySender[m.SenderID]; ok && prev >= m.Body {
			t.Fatalf("sender %s out of order: %q after %q", m.SenderID, m.Body, prev)
		}
		lastBySender[m.SenderID] = m.Body
	}
}

func TestMarkReadConcurrentWithAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	const total = 300

	var marked int
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			s.Append(ctx, "bob", "alice", "car-1", "ping")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			n, _ := s.MarkRead(ctx, "alice", "bob", "car-1")
			marked += n
		}
	}()
	wg.Wait()
	n, _ := s.MarkRead(ctx, "alice", "bob", "car-1")
	marked += n

	if marked != total {
		t.Errorf("rows marked read: got %d, want %d", marked, total)
	}
}
