package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/model"
)

// Static answers every lookup with a bare profile carrying only the user id.
// It stands in when no account database is configured.
type Static struct{}

func (Static) Profile(_ context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{UserID: userID, DisplayName: userID}, nil
}

// Cached keeps profiles from the wrapped directory in Redis for ttl.
type Cached struct {
	next   chat.Directory
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCached(next chat.Directory, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{next: next, redis: rdb, ttl: ttl, logger: logger}
}

func cacheKey(userID string) string {
	return "profile:" + userID
}

func (c *Cached) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	if raw, err := c.redis.Get(ctx, cacheKey(userID)).Bytes(); err == nil {
		var p model.Profile
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Str("user", userID).Msg("profile cache read failed")
	}

	p, err := c.next.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := c.redis.Set(ctx, cacheKey(userID), raw, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("user", userID).Msg("profile cache write failed")
		}
	}
	return p, nil
}
