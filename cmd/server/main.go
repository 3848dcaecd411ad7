package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tasklane/convo/internal/api"
	"github.com/tasklane/convo/internal/chat"
	"github.com/tasklane/convo/internal/config"
	"github.com/tasklane/convo/internal/notify"
	"github.com/tasklane/convo/internal/store"
	"github.com/tasklane/convo/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Pick the relational store: Postgres when configured, SQLite for
	// standalone development.
	var db store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		db = pg
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		lite, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = lite
		logger.Info().Msg("using SQLite store")
	}
	defer db.Close()

	// Redis is optional; without it rate limiting is disabled.
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Wire the live layer: hub, protocol service, router.
	hub := ws.NewHub(logger)
	svc := chat.NewService(db, hub, logger)
	router := api.NewRouter(logger, svc, db, redisStore, hub, cfg.AllowedOrigins)

	// Optional notification ingest from the marketplace broker.
	notifyCtx, stopNotify := context.WithCancel(ctx)
	defer stopNotify()
	if cfg.AMQPURL != "" {
		consumer := notify.NewConsumer(cfg.AMQPURL, hub, logger)
		go func() {
			if err := consumer.Run(notifyCtx); err != nil && notifyCtx.Err() == nil {
				logger.Error().Err(err).Msg("notification consumer stopped")
			}
		}()
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections outlive any write deadline
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting convo server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stopNotify()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
