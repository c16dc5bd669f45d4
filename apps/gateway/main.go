package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mahaj/carmarket-chat/pkg/auth"
	"github.com/mahaj/carmarket-chat/pkg/backend"
	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/config"
	"github.com/mahaj/carmarket-chat/pkg/fanout"
	"github.com/mahaj/carmarket-chat/pkg/hub"
	"github.com/mahaj/carmarket-chat/pkg/logging"
	"github.com/mahaj/carmarket-chat/pkg/presence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, closer, err := logging.New("gateway", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	defer closer.Close()

	instanceID := uuid.NewString()
	logger = logger.With().Str("instance", instanceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open backend")
	}
	defer be.Close()

	opts := hub.Options{
		Service:    chat.NewService(be.Store, be.Directory, logger),
		Tokens:     auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL),
		Presence:   presence.NewTracker(be.Redis),
		SendRate:   cfg.SendRate,
		SendBurst:  cfg.SendBurst,
		PushBuffer: cfg.PushBuffer,
		Logger:     logger,
	}

	var fan *fanout.Kafka
	if cfg.Fanout == config.FanoutKafka {
		fan = fanout.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, instanceID, logger)
		defer fan.Close()
		opts.Publisher = fan
	}

	h := hub.New(opts)
	if fan != nil {
		go fan.Run(ctx, h)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka fan-out enabled")
	}

	r := newRouter(h, cfg.AllowedOrigins)

	// No write timeout: websocket connections outlive any single request.
	srv := &http.Server{
		Addr:        cfg.GatewayAddr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.GatewayAddr).Str("fanout", cfg.Fanout).Msg("starting gateway")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("gateway stopped")
}
