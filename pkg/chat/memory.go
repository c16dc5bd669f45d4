package chat

import (
	"context"
	"sync"

	"github.com/mahaj/carmarket-chat/pkg/model"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

type pairKey struct {
	listing string
	lo, hi  string
}

func keyOf(userA, userB, listingID string) pairKey {
	lo, hi := PairKey(userA, userB)
	return pairKey{listing: listingID, lo: lo, hi: hi}
}

type convLog struct {
	mu   sync.Mutex
	msgs []model.Message
}

// MemoryStore keeps the message log in process memory. Each conversation
// has its own lock; the outer lock only guards the index maps.
type MemoryStore struct {
	ids *snowflake.Node

	mu     sync.RWMutex
	convs  map[pairKey]*convLog
	byUser map[string]map[pairKey]struct{}
}

func NewMemoryStore(ids *snowflake.Node) *MemoryStore {
	return &MemoryStore{
		ids:    ids,
		convs:  make(map[pairKey]*convLog),
		byUser: make(map[string]map[pairKey]struct{}),
	}
}

func (s *MemoryStore) log(key pairKey, create bool) *convLog {
	s.mu.RLock()
	l, ok := s.convs[key]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.convs[key]; ok {
		return l
	}
	l = &convLog{}
	s.convs[key] = l
	for _, u := range []string{key.lo, key.hi} {
		if s.byUser[u] == nil {
			s.byUser[u] = make(map[pairKey]struct{})
		}
		s.byUser[u][key] = struct{}{}
	}
	return l
}

func (s *MemoryStore) Append(ctx context.Context, senderID, recipientID, listingID, body string) (*model.Message, error) {
	body, err := ValidateMessage(senderID, recipientID, listingID, body)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := s.log(keyOf(senderID, recipientID, listingID), true)
	l.mu.Lock()
	defer l.mu.Unlock()

	// Ids are drawn under the conversation lock so slice order and id order agree.
	id, at := s.ids.Next()
	m := model.Message{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		ListingID:   listingID,
		Body:        body,
		CreatedAt:   at,
	}
	l.msgs = append(l.msgs, m)
	return &m, nil
}

func (s *MemoryStore) ListBetween(ctx context.Context, userA, userB, listingID string) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := s.log(keyOf(userA, userB, listingID), false)
	if l == nil {
		return []model.Message{}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Message, len(l.msgs))
	copy(out, l.msgs)
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, recipientID, senderID, listingID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l := s.log(keyOf(recipientID, senderID, listingID), false)
	if l == nil {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.msgs {
		m := &l.msgs[i]
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteConversation(ctx context.Context, userA, userB, listingID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l := s.log(keyOf(userA, userB, listingID), false)
	if l == nil {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.msgs)
	l.msgs = nil
	return n, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	logs := make([]*convLog, 0, len(s.byUser[userID]))
	for key := range s.byUser[userID] {
		logs = append(logs, s.convs[key])
	}
	s.mu.RUnlock()

	var out []model.Message
	for _, l := range logs {
		l.mu.Lock()
		out = append(out, l.msgs...)
		l.mu.Unlock()
	}
	return out, nil
}
