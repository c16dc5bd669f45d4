// Package backend opens the storage and cache connections the services share.
package backend

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/config"
	"github.com/mahaj/carmarket-chat/pkg/db"
	"github.com/mahaj/carmarket-chat/pkg/directory"
	"github.com/mahaj/carmarket-chat/pkg/pg"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

const connectTimeout = 10 * time.Second

type Backend struct {
	Store     chat.Store
	Directory chat.Directory
	Redis     *redis.Client

	scylla *db.Session
	pool   *pgxpool.Pool
}

// Open connects the configured message store, the Redis client and the user
// directory. Redis being down is logged, not fatal: presence and the profile
// cache degrade and the conversation core keeps working.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	b := &Backend{}
	if cfg.DatabaseURL != "" {
		b.pool, err = pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to PostgreSQL")
	}

	switch cfg.StoreBackend {
	case config.BackendScylla:
		b.scylla, err = db.NewSession(db.ClusterConfig{
			Hosts:       cfg.ScyllaHosts,
			Keyspace:    cfg.ScyllaKeyspace,
			Consistency: cfg.ScyllaConsistency,
			Timeout:     cfg.ScyllaTimeout,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Store = db.NewScyllaStore(b.scylla, ids)
		logger.Info().Strs("hosts", cfg.ScyllaHosts).Str("keyspace", cfg.ScyllaKeyspace).Msg("connected to ScyllaDB")
	case config.BackendPostgres:
		b.Store = pg.NewPostgresStore(b.pool, ids)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	b.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := b.Redis.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, presence and profile cache degraded")
	} else {
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	var dir chat.Directory = directory.Static{}
	if b.pool != nil {
		dir = pg.NewDirectory(b.pool)
	}
	b.Directory = directory.NewCached(dir, b.Redis, cfg.ProfileCacheTTL, logger)
	return b, nil
}

func (b *Backend) Close() {
	if b.Redis != nil {
		b.Redis.Close()
	}
	if b.scylla != nil {
		b.scylla.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
