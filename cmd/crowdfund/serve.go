package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/database/migrations"
	"github.com/Aidin1998/crowdfund/internal/events"
	"github.com/Aidin1998/crowdfund/internal/identities"
	"github.com/Aidin1998/crowdfund/internal/middleware/ratelimit"
	"github.com/Aidin1998/crowdfund/internal/notification"
	"github.com/Aidin1998/crowdfund/internal/projects"
	"github.com/Aidin1998/crowdfund/internal/server"
	"github.com/Aidin1998/crowdfund/internal/telemetry"
	"github.com/Aidin1998/crowdfund/pkg/metrics"
	"github.com/Aidin1998/crowdfund/pkg/validation"
)

const dbStatsInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, e)
	},
}

func serve(ctx context.Context, e *env) error {
	cfg, log := e.cfg, e.logger

	result, err := migrations.NewMigrationRunner(e.db, log).Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("database schema unavailable: %w", err)
	}
	log.Info("Database ready",
		zap.Bool("stamped", result.Stamped),
		zap.Strings("applied", result.Applied),
		zap.Bool("fallback", result.Fallback))

	if cfg.TracingEnabled {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "crowdfund", Tracing: true, Metrics: true})
		if err != nil {
			return fmt.Errorf("failed to set up telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Warn("Telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	publisher := events.NewPublisher(cfg.Kafka, log)
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, log)
	notifier := notification.NewNotifier(notification.NewMailer(cfg.SMTP, log), cfg.Server.FrontendURL, log)
	v := validation.NewValidator()

	identitiesSvc := identities.NewService(log, e.db, cfg.Auth, v,
		identities.WithNotifier(notifier),
		identities.WithEmitter(emitter),
	)
	if _, err := identitiesSvc.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	projectsSvc := projects.NewService(log, e.db, v, projects.WithEmitter(emitter))

	tokens, err := identities.NewTokenValidator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}
	limiter := ratelimit.New(cfg.Redis, cfg.Auth, log)

	go observeDB(ctx, e)

	srv := server.NewServer(log, cfg.Server, identitiesSvc, projectsSvc, limiter, tokens, server.WithDatabase(e.db))
	return srv.ListenAndServe(ctx)
}

// observeDB exports connection pool gauges until ctx is done.
func observeDB(ctx context.Context, e *env) {
	sqlDB, err := e.db.DB()
	if err != nil {
		e.logger.Warn("DB stats unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ObserveDBStats(sqlDB.Stats())
		}
	}
}
