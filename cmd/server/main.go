package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mailflow/mailflow/internal/auth"
	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/database"
	"github.com/mailflow/mailflow/internal/handler"
	"github.com/mailflow/mailflow/internal/logger"
	"github.com/mailflow/mailflow/internal/mail"
	"github.com/mailflow/mailflow/internal/middleware"
	"github.com/mailflow/mailflow/internal/repository"
	"github.com/mailflow/mailflow/internal/router"
	"github.com/mailflow/mailflow/internal/sendjob"
	"github.com/mailflow/mailflow/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting Mailflow server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("connected to Redis")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)

	// Initialize token service
	tokenSvc, err := auth.NewTokenService(cfg.Security.Tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token service")
	}

	// Initialize services
	authSvc := service.NewAuthService(userRepo, tokenSvc, cfg, log)

	// Initialize the mail transport. A missing credential is not fatal at
	// startup; jobs fail their transport precondition until it is set.
	sender, err := mail.New(context.Background(), cfg.Mail)
	if err != nil {
		log.Warn().Err(err).Msg("mail transport unavailable; send jobs will be rejected")
		sender = nil
	} else {
		log.Info().Str("provider", cfg.Mail.Provider).Msg("mail transport initialized")
	}

	// Initialize the send job runner
	runner := sendjob.NewRunner(sender, deliveryLogRepo, cfg.SendJob, log)

	// Initialize handlers
	h := handler.New(db, rdb, log, cfg, authSvc, runner, deliveryLogRepo)

	// Initialize middleware
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, log, tokenSvc)

	// Create HTTP server. Write timeout stays generous: a send job runs
	// synchronously inside its request, paced by the inter-send delay.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Ask a running job to stop before draining connections
	if runner.RequestStop() {
		log.Info().Msg("requested stop of the running send job")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
