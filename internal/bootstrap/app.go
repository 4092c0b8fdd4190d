// Package bootstrap handles initialization and lifecycle of the pricewatch
// service.
//
// The startup follows these phases:
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Database - Connect to PostgreSQL and create repositories
//   - Phase 3: Redis - Connect when enabled (failure counters, cycle lock)
//   - Phase 4: Services - Wire fetchers, pricing, channels, notifications
//   - Phase 5: Server - Start the ops server (health, metrics)
//   - Phase 6: Run - Schedule cycles until interrupted
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	infragin "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/monitor"
)

const defaultShutdownTimeout = 30 * time.Second

// Run starts the service and blocks until ctx ends, a signal arrives or the
// ops server fails.
func Run(ctx context.Context, configPath string) error {
	// Phase 1: Config and logger
	deps, err := NewCommandDeps(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	log := deps.Logger
	defer func() { _ = log.Sync() }()

	// Phase 2: Database
	db, err := SetupDatabase(ctx, deps.Config)
	if err != nil {
		return fmt.Errorf("failed to setup database: %w", err)
	}
	defer func() {
		if closeErr := db.DB.Close(); closeErr != nil {
			log.Warn("Failed to close database", infralogger.Error(closeErr))
		}
	}()

	// Phase 3: Redis
	redisClient, err := CreateRedisClient(ctx, deps.Config)
	switch {
	case errors.Is(err, ErrRedisDisabled):
		log.Info("Redis disabled, failure counts kept in memory")
	case err != nil:
		return fmt.Errorf("failed to connect to redis: %w", err)
	default:
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Warn("Failed to close redis", infralogger.Error(closeErr))
			}
		}()
	}

	// Phase 4: Services
	services := SetupServices(deps, db, redisClient)

	// Phase 5: Ops server
	server := SetupOpsServer(deps.Config, log, db, redisClient, services.Registry)
	var serverErr <-chan error
	if server != nil {
		if serverErr, err = server.StartAsync(); err != nil {
			return fmt.Errorf("failed to start ops server: %w", err)
		}
	}

	// Phase 6: Run
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = services.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("Pricewatch started")

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-serverErr:
		log.Error("Ops server failed", infralogger.Error(err))
	}

	//nolint:contextcheck // The run context is already cancelled at this point
	shutdown(log, services, server)
	return err
}

// shutdown stops components in dependency order: the scheduler first so no
// new notifications are produced, then the gateway drains.
func shutdown(log infralogger.Logger, services *ServiceComponents, server *infragin.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	log.Info("Stopping scheduler")
	if err := services.Scheduler.Stop(ctx); err != nil {
		log.Error("Failed to stop scheduler", infralogger.Error(err))
	}

	log.Info("Draining notifications")
	closeGateway(ctx, services.Gateway, log)

	if server != nil {
		log.Info("Stopping ops server")
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Failed to stop ops server", infralogger.Error(err))
		}
	}

	log.Info("Pricewatch stopped")
}

// RunOnce runs a single monitoring cycle and waits for its notifications.
func RunOnce(ctx context.Context, configPath string) (*monitor.CycleReport, error) {
	deps, err := NewCommandDeps(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	log := deps.Logger
	defer func() { _ = log.Sync() }()

	db, err := SetupDatabase(ctx, deps.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	defer func() { _ = db.DB.Close() }()

	redisClient, err := CreateRedisClient(ctx, deps.Config)
	switch {
	case errors.Is(err, ErrRedisDisabled):
	case err != nil:
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	default:
		defer func() { _ = redisClient.Close() }()
	}

	services := SetupServices(deps, db, redisClient)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := services.Scheduler.RunCycle(ctx)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	closeGateway(drainCtx, services.Gateway, log)

	if err != nil {
		return nil, fmt.Errorf("monitoring cycle: %w", err)
	}
	return report, nil
}
