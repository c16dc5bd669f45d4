package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mahaj/carmarket-chat/pkg/auth"
	"github.com/mahaj/carmarket-chat/pkg/backend"
	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/config"
	"github.com/mahaj/carmarket-chat/pkg/logging"
	"github.com/mahaj/carmarket-chat/pkg/presence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, closer, err := logging.New("api", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	defer closer.Close()

	be, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open backend")
	}
	defer be.Close()

	router := newRouter(routerConfig{
		Chat:     chat.NewService(be.Store, be.Directory, logger),
		Auth:     auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL),
		Presence: presence.NewTracker(be.Redis),
		Origins:  cfg.AllowedOrigins,
		DevLogin: cfg.IsDevelopment(),
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.APIAddr).Str("env", cfg.Env).Str("store", cfg.StoreBackend).Msg("starting API service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down API service")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("API service stopped")
}
