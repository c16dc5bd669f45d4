package db

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/metrics"
	"github.com/mahaj/carmarket-chat/pkg/model"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

const backend = "scylla"

// Rows of messages_by_conversation are only ever written through
// lightweight transactions. Scylla does not order LWT and plain writes to
// the same row against each other.
const (
	stmtInsertMessage = `INSERT INTO messages_by_conversation (listing_id, user_lo, user_hi, id, sender_id, recipient_id, body, read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, false, ?) IF NOT EXISTS`
	stmtMarkRead      = `UPDATE messages_by_conversation SET read = true WHERE listing_id = ? AND user_lo = ? AND user_hi = ? AND id = ? IF read = false`
	stmtDeleteMessage = `DELETE FROM messages_by_conversation WHERE listing_id = ? AND user_lo = ? AND user_hi = ? AND id = ? IF EXISTS`
)

var messageWrites = []string{stmtInsertMessage, stmtMarkRead, stmtDeleteMessage}

const (
	stmtIndexConversation   = `INSERT INTO user_conversations (user_id, listing_id, other_user_id, last_updated) VALUES (?, ?, ?, ?)`
	stmtUnindexConversation = `DELETE FROM user_conversations WHERE user_id = ? AND listing_id = ? AND other_user_id = ?`
)

// ScyllaStore is the chat.Store backed by ScyllaDB.
type ScyllaStore struct {
	session *Session
	ids     *snowflake.Node
}

var _ chat.Store = (*ScyllaStore)(nil)

func NewScyllaStore(session *Session, ids *snowflake.Node) *ScyllaStore {
	return &ScyllaStore{session: session, ids: ids}
}

func (s *ScyllaStore) Append(ctx context.Context, senderID, recipientID, listingID, body string) (*model.Message, error) {
	body, err := chat.ValidateMessage(senderID, recipientID, listingID, body)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveStore(backend, "append", time.Now())

	id, at := s.ids.Next()
	lo, hi := chat.PairKey(senderID, recipientID)

	applied, err := s.session.Query(stmtInsertMessage, listingID, lo, hi, id, senderID, recipientID, body, at).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return nil, errors.Wrap(err, "scylla: append message")
	}
	if !applied {
		return nil, errors.Errorf("scylla: message id %d already exists", id)
	}

	b := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	b.Query(stmtIndexConversation, senderID, listingID, recipientID, at)
	b.Query(stmtIndexConversation, recipientID, listingID, senderID, at)
	if err := s.session.ExecuteBatch(b); err != nil {
		return nil, errors.Wrap(err, "scylla: index conversation")
	}

	return &model.Message{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		ListingID:   listingID,
		Body:        body,
		CreatedAt:   at,
	}, nil
}

func (s *ScyllaStore) ListBetween(ctx context.Context, userA, userB, listingID string) ([]model.Message, error) {
	defer metrics.ObserveStore(backend, "list_between", time.Now())
	return s.listPartition(ctx, userA, userB, listingID)
}

func (s *ScyllaStore) listPartition(ctx context.Context, userA, userB, listingID string) ([]model.Message, error) {
	lo, hi := chat.PairKey(userA, userB)
	iter := s.session.Query(`SELECT id, sender_id, recipient_id, body, read, created_at FROM messages_by_conversation WHERE listing_id = ? AND user_lo = ? AND user_hi = ?`,
		listingID, lo, hi).WithContext(ctx).Iter()

	messages := []model.Message{}
	var m model.Message
	for iter.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.Read, &m.CreatedAt) {
		m.ListingID = listingID
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
		m = model.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "scylla: list conversation")
	}
	return messages, nil
}

// MarkRead flips each unread row with a lightweight transaction, so a row
// is counted by exactly one caller even when two readers race.
func (s *ScyllaStore) MarkRead(ctx context.Context, recipientID, senderID, listingID string) (int, error) {
	defer metrics.ObserveStore(backend, "mark_read", time.Now())

	msgs, err := s.listPartition(ctx, recipientID, senderID, listingID)
	if err != nil {
		return 0, err
	}
	lo, hi := chat.PairKey(recipientID, senderID)

	n := 0
	for _, m := range msgs {
		if m.RecipientID != recipientID || m.SenderID != senderID || m.Read {
			continue
		}
		applied, err := s.session.Query(stmtMarkRead, listingID, lo, hi, m.ID).
			WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return n, errors.Wrapf(err, "scylla: mark message %d read", m.ID)
		}
		if applied {
			n++
		}
	}
	return n, nil
}

// DeleteConversation removes the messages it finds one row at a time and
// counts only the deletes that applied. The index rows go once the
// partition is empty, so a message appended mid-delete keeps its
// conversation listed.
func (s *ScyllaStore) DeleteConversation(ctx context.Context, userA, userB, listingID string) (int, error) {
	defer metrics.ObserveStore(backend, "delete", time.Now())

	msgs, err := s.listPartition(ctx, userA, userB, listingID)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	lo, hi := chat.PairKey(userA, userB)

	n := 0
	for _, m := range msgs {
		applied, err := s.session.Query(stmtDeleteMessage, listingID, lo, hi, m.ID).
			WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return n, errors.Wrapf(err, "scylla: delete message %d", m.ID)
		}
		if applied {
			n++
		}
	}

	left, err := s.listPartition(ctx, userA, userB, listingID)
	if err != nil {
		return n, err
	}
	if len(left) > 0 {
		return n, nil
	}
	b := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	b.Query(stmtUnindexConversation, userA, listingID, userB)
	b.Query(stmtUnindexConversation, userB, listingID, userA)
	if err := s.session.ExecuteBatch(b); err != nil {
		return n, errors.Wrap(err, "scylla: unindex conversation")
	}
	return n, nil
}

func (s *ScyllaStore) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	defer metrics.ObserveStore(backend, "list_for_user", time.Now())

	iter := s.session.Query(`SELECT listing_id, other_user_id FROM user_conversations WHERE user_id = ?`, userID).
		WithContext(ctx).Iter()
	type conv struct{ listing, other string }
	var convs []conv
	var c conv
	for iter.Scan(&c.listing, &c.other) {
		convs = append(convs, c)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "scylla: list user conversations")
	}

	var out []model.Message
	for _, c := range convs {
		msgs, err := s.listPartition(ctx, userID, c.other, c.listing)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}
