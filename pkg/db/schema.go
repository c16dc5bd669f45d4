package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

var keyspaceName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// Both directions of a conversation live in one partition keyed by the
// listing and the ordered user pair, clustered by message id.
// user_conversations lets a user find their partitions without a scan.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS messages_by_conversation (
		listing_id text,
		user_lo text,
		user_hi text,
		id bigint,
		sender_id text,
		recipient_id text,
		body text,
		read boolean,
		created_at timestamp,
		PRIMARY KEY ((listing_id, user_lo, user_hi), id)
	) WITH CLUSTERING ORDER BY (id ASC)`,
	`CREATE TABLE IF NOT EXISTS user_conversations (
		user_id text,
		listing_id text,
		other_user_id text,
		last_updated timestamp,
		PRIMARY KEY (user_id, listing_id, other_user_id)
	)`,
}

// CreateKeyspace connects through the system keyspace and creates
// cfg.Keyspace if it is missing.
func CreateKeyspace(cfg ClusterConfig, replicationFactor int) error {
	keyspace := cfg.Keyspace
	if !keyspaceName.MatchString(keyspace) {
		return errors.Errorf("invalid keyspace name %q", keyspace)
	}
	if replicationFactor < 1 {
		replicationFactor = 1
	}
	sysCfg := cfg
	sysCfg.Keyspace = "system"
	sys, err := NewSession(sysCfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : %d }`,
		keyspace, replicationFactor)
	if err := sys.Query(stmt).Exec(); err != nil {
		return errors.Wrap(err, "creating keyspace")
	}
	return nil
}

// Migrate creates the chat tables in the session's keyspace.
func Migrate(ctx context.Context, session *Session) error {
	for _, stmt := range tables {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return errors.Wrap(err, "creating table")
		}
	}
	return nil
}

// DropTables removes the chat tables. Used by the reset path of the migrate
// tool.
func DropTables(ctx context.Context, session *Session) error {
	for _, name := range []string{"messages_by_conversation", "user_conversations"} {
		if err := session.Query("DROP TABLE IF EXISTS " + name).WithContext(ctx).Exec(); err != nil {
			return errors.Wrapf(err, "dropping %s", name)
		}
	}
	return nil
}
