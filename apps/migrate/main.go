// Command migrate creates the chat schema for the configured store backend.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mahaj/carmarket-chat/pkg/config"
	"github.com/mahaj/carmarket-chat/pkg/db"
	"github.com/mahaj/carmarket-chat/pkg/logging"
	"github.com/mahaj/carmarket-chat/pkg/pg"
)

func main() {
	reset := flag.Bool("reset", false, "drop the chat tables before creating them")
	rf := flag.Int("rf", 1, "replication factor for a new Scylla keyspace")
	withUsers := flag.Bool("users", false, "also create the users table read by the profile directory (postgres only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger, closer, err := logging.New("migrate", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendScylla:
		err = migrateScylla(ctx, cfg, *rf, *reset, logger)
	case config.BackendPostgres:
		err = migratePostgres(ctx, cfg, *withUsers, *reset, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("migration failed")
	}
	logger.Info().Str("backend", cfg.StoreBackend).Msg("schema ready")
}

func migrateScylla(ctx context.Context, cfg *config.Config, rf int, reset bool, logger zerolog.Logger) error {
	cluster := db.ClusterConfig{
		Hosts:       cfg.ScyllaHosts,
		Keyspace:    cfg.ScyllaKeyspace,
		Consistency: cfg.ScyllaConsistency,
		Timeout:     cfg.ScyllaTimeout,
	}
	if err := db.CreateKeyspace(cluster, rf); err != nil {
		return err
	}
	session, err := db.NewSession(cluster)
	if err != nil {
		return err
	}
	defer session.Close()

	if reset {
		logger.Warn().Str("keyspace", cfg.ScyllaKeyspace).Msg("dropping chat tables")
		if err := db.DropTables(ctx, session); err != nil {
			return err
		}
	}
	return db.Migrate(ctx, session)
}

func migratePostgres(ctx context.Context, cfg *config.Config, withUsers, reset bool, logger zerolog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if reset {
		logger.Warn().Msg("dropping chat tables")
		if err := pg.DropTables(ctx, pool); err != nil {
			return err
		}
	}
	return pg.Migrate(ctx, pool, withUsers)
}
