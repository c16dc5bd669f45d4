package presence

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ttl bounds how long a crashed gateway can leave a user looking online.
// Live connections refresh it on every websocket ping.
const ttl = 2 * time.Hour

// Tracker records which users hold a live connection, across all gateway
// instances. It is advisory: delivery never depends on it.
type Tracker struct {
	redis *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{redis: rdb}
}

func key(userID string) string {
	return "presence:user:" + userID + ":conns"
}

// Add records connID as a live connection of userID.
func (t *Tracker) Add(ctx context.Context, userID, connID string) error {
	if err := t.touch(ctx, userID, connID); err != nil {
		return errors.Wrapf(err, "presence add %s", userID)
	}
	return nil
}

// Refresh extends the expiry of userID's entry, re-adding connID in case
// the set already expired.
func (t *Tracker) Refresh(ctx context.Context, userID, connID string) error {
	if err := t.touch(ctx, userID, connID); err != nil {
		return errors.Wrapf(err, "presence refresh %s", userID)
	}
	return nil
}

func (t *Tracker) touch(ctx context.Context, userID, connID string) error {
	pipe := t.redis.TxPipeline()
	pipe.SAdd(ctx, key(userID), connID)
	pipe.Expire(ctx, key(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove forgets connID.
func (t *Tracker) Remove(ctx context.Context, userID, connID string) error {
	if err := t.redis.SRem(ctx, key(userID), connID).Err(); err != nil {
		return errors.Wrapf(err, "presence remove %s", userID)
	}
	return nil
}

// Connections returns how many live connections userID holds.
func (t *Tracker) Connections(ctx context.Context, userID string) (int64, error) {
	n, err := t.redis.SCard(ctx, key(userID)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "presence lookup %s", userID)
	}
	return n, nil
}
