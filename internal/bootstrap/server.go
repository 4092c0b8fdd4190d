package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	infragin "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/config"
)

// SetupOpsServer creates the health and metrics server, or nil when it is
// disabled. redisClient may be nil.
func SetupOpsServer(
	cfg *config.Config,
	log infralogger.Logger,
	db *DatabaseComponents,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
) *infragin.Server {
	if !cfg.OpsServer.Enabled {
		return nil
	}

	checks := map[string]infragin.HealthChecker{
		"database": func(ctx context.Context) error { return db.DB.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	serverCfg := &infragin.Config{
		Port:           cfg.OpsServer.Port,
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
	}
	return infragin.NewServer(serverCfg, log.With(infralogger.String("component", "ops")), func(r *gin.Engine) {
		infragin.RegisterHealthRoutes(r, serverCfg, checks)
		infragin.RegisterMetricsRoute(r, gatherer)
	})
}
