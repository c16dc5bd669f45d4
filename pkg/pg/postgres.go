package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/metrics"
	"github.com/mahaj/carmarket-chat/pkg/model"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

const backend = "postgres"

// Connect opens a pool and checks it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: parse config")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

// PostgresStore is the chat.Store backed by PostgreSQL. Row locks taken by
// UPDATE make each read-flag transition count exactly once.
type PostgresStore struct {
	pool *pgxpool.Pool
	ids  *snowflake.Node
}

var _ chat.Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool, ids *snowflake.Node) *PostgresStore {
	return &PostgresStore{pool: pool, ids: ids}
}

const messageColumns = `id, sender_id, recipient_id, listing_id, body, is_read, created_at`

func (s *PostgresStore) Append(ctx context.Context, senderID, recipientID, listingID, body string) (*model.Message, error) {
	body, err := chat.ValidateMessage(senderID, recipientID, listingID, body)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveStore(backend, "append", time.Now())

	id, at := s.ids.Next()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, sender_id, recipient_id, listing_id, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`, id, senderID, recipientID, listingID, body, at)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: append message")
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

func (s *PostgresStore) ListBetween(ctx context.Context, userA, userB, listingID string) ([]model.Message, error) {
	defer metrics.ObserveStore(backend, "list_between", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE listing_id = $3
		  AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		ORDER BY created_at ASC, id ASC
	`, userA, userB, listingID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list conversation")
	}
	return scanMessages(rows)
}

func (s *PostgresStore) MarkRead(ctx context.Context, recipientID, senderID, listingID string) (int, error) {
	defer metrics.ObserveStore(backend, "mark_read", time.Now())
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages SET is_read = TRUE
		WHERE recipient_id = $1 AND sender_id = $2 AND listing_id = $3 AND NOT is_read
	`, recipientID, senderID, listingID)
	if err != nil {
		return 0, errors.Wrap(err, "postgres: mark read")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, userA, userB, listingID string) (int, error) {
	defer metrics.ObserveStore(backend, "delete", time.Now())
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM chat_messages
		WHERE listing_id = $3
		  AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
	`, userA, userB, listingID)
	if err != nil {
		return 0, errors.Wrap(err, "postgres: delete conversation")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	defer metrics.ObserveStore(backend, "list_for_user", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE sender_id = $1 OR recipient_id = $1
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list user messages")
	}
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]model.Message, error) {
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.ListingID, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "postgres: scan message")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: iterate messages")
	}
	return out, nil
}
