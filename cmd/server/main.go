package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/client"
	"github.com/mfgtrack/be-order-tracking/internal/config"
	"github.com/mfgtrack/be-order-tracking/internal/database"
	"github.com/mfgtrack/be-order-tracking/internal/handler"
	"github.com/mfgtrack/be-order-tracking/internal/middleware"
	"github.com/mfgtrack/be-order-tracking/internal/repository"
	"github.com/mfgtrack/be-order-tracking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Order Tracking Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Repositories
	departmentRepo := repository.NewDepartmentRepository(db)
	catalogRepo := repository.NewStateCatalogRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	orderStatusRepo := repository.NewOrderStatusRepository(db)
	ruleRepo := repository.NewRecipientRuleRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserDirectoryRepository(db)

	// Optional delivery backends. Each one disables itself when unconfigured
	// so local development needs nothing beyond Postgres.
	var push service.PushGateway
	if cfg.Push.CredentialsFile != "" {
		fcm, err := client.NewFCMClient(ctx, cfg.Push.CredentialsFile, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize FCM client")
		}
		push = fcm
		log.Info().Msg("FCM push delivery enabled")
	}

	var email service.EmailGateway
	if cfg.SMTP.Host != "" {
		email = client.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, log)
		log.Info().Str("host", cfg.SMTP.Host).Msg("SMTP email delivery enabled")
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	}
	events := client.NewEventPublisher(nc, log)

	// Services
	resolver := service.NewRecipientResolver(ruleRepo, userRepo, log)
	prefs := service.NewPreferenceService(preferenceRepo, userRepo, log)
	dispatcher := service.NewDispatcher(notificationRepo, userRepo, push, email, cfg.Push.Timeout, cfg.SMTP.Timeout, log)
	fanout := service.NewFanoutService(resolver, prefs, dispatcher, events, cfg.Fanout.Concurrency, log)

	orders := service.NewOrderStateService(orderRepo, catalogRepo, departmentRepo, orderStatusRepo, fanout, cfg.Reconcile.EntryStateLabel, log)

	sweeper := service.NewSweeper(orders, cfg.Reconcile.SweepSchedule, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reconcile sweeper")
	}
	defer sweeper.Stop()

	catalog := service.NewStateCatalogService(catalogRepo, departmentRepo, orderStatusRepo, sweeper, log)
	inbox := service.NewInboxService(notificationRepo, userRepo, userRepo, log)
	rules := service.NewRuleService(ruleRepo, log)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(orders, catalog, inbox, rules, prefs, fanout, sweeper, log)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	var h http.Handler = mux
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Logger(log)(h)
	h = middleware.Recovery(log)(h)
	h = middleware.RequestID(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	log := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Logger()
	if cfg.Service.Environment == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: out})
	}
	return log
}
