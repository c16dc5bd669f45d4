package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var messageSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGINT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		body TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT chat_messages_not_self CHECK (sender_id <> recipient_id)
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_pair_idx ON chat_messages (listing_id, sender_id, recipient_id, id)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_recipient_idx ON chat_messages (recipient_id)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_sender_idx ON chat_messages (sender_id)`,
}

// The users table belongs to the account service; this is only created for
// local setups where that service is not running.
var directorySchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		company_name TEXT
	)`,
}

// Migrate creates the chat tables, and the users table when withDirectory
// is set.
func Migrate(ctx context.Context, pool *pgxpool.Pool, withDirectory bool) error {
	stmts := messageSchema
	if withDirectory {
		stmts = append(append([]string{}, messageSchema...), directorySchema...)
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

// DropTables removes the chat tables. The users table is never dropped.
func DropTables(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS chat_messages`); err != nil {
		return errors.Wrap(err, "postgres: drop chat_messages")
	}
	return nil
}
