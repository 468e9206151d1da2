package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/salesdesk/internal/auth"
	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/config"
	"github.com/straye-as/salesdesk/internal/database"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/http/handler"
	"github.com/straye-as/salesdesk/internal/http/middleware"
	"github.com/straye-as/salesdesk/internal/http/router"
	"github.com/straye-as/salesdesk/internal/jobs"
	"github.com/straye-as/salesdesk/internal/logger"
	"github.com/straye-as/salesdesk/internal/repository"
	"github.com/straye-as/salesdesk/internal/service"
	"github.com/straye-as/salesdesk/internal/session"
	"github.com/straye-as/salesdesk/internal/table"
	"github.com/straye-as/salesdesk/internal/urlstate"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// In development secrets come from the environment, in staging and
	// production from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("No JWT secret configured; every API request will be rejected")
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	client, err := backend.NewClient(&cfg.Backend, log.Named("backend"))
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	log.Info("CRM backend configured",
		zap.String("base_url", cfg.Backend.BaseURL),
		zap.Int("max_retries", cfg.Backend.MaxRetries),
	)

	// Table sessions
	open := func(entity domain.Entity, creds backend.Credentials, location urlstate.Location, opts table.Options) (table.Table, error) {
		return table.Open(entity, client, creds, location, opts)
	}
	sessions := session.NewManager(open, &cfg.Sessions, table.Options{
		SearchDebounce: cfg.Tables.SearchDebounce(),
		FetchTimeout:   cfg.Tables.FetchTimeout(),
	}, cfg.Backend.APIKey, log.Named("sessions"))
	defer sessions.Close()

	// Saved views
	savedViewRepo := repository.NewSavedViewRepository(db)
	savedViewService := service.NewSavedViewService(savedViewRepo, log)

	// Handlers
	sessionHandler := handler.NewSessionHandler(sessions, cfg.Tables.FetchTimeout(), log)
	rt := router.NewRouter(
		cfg,
		log,
		auth.NewMiddleware(cfg, log),
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		handler.NewHealthHandler(db, client, log),
		handler.NewTableHandler(client, cfg.Backend.APIKey, cfg.Tables.FetchTimeout(), log),
		sessionHandler,
		handler.NewSavedViewHandler(savedViewService, sessionHandler, log),
	)

	// Background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterSessionSweepJob(scheduler, sessions, log, cfg.Jobs.SessionSweepCron); err != nil {
			return fmt.Errorf("failed to register session sweep job: %w", err)
		}
		scheduler.Start()
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      http.TimeoutHandler(rt.Setup(), cfg.Server.RequestTimeoutDuration(), `{"type":"internal_error","title":"Request timed out","status":503}`),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully", zap.Int("open_sessions", sessions.Len()))
	}

	return nil
}
