package bootstrap

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	infrahttp "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/http"
	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/channel"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/config"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/coordination"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/extractor"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/monitor"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/notify"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/pricing"
)

// ServiceComponents holds the long-lived services.
type ServiceComponents struct {
	Gateway   *notify.Gateway
	Scheduler *monitor.Scheduler
	Registry  *prometheus.Registry
}

// NewPageMonitor builds the fetch and extract pipeline. It needs no storage.
func NewPageMonitor(cfg *config.Config, log infralogger.Logger) *fetcher.Monitor {
	direct := fetcher.NewDirectFetcher(fetcher.DirectConfig{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.Fetcher.DirectTimeout,
	})

	// A typed nil would defeat the nil check inside the monitor.
	var browser fetcher.Fetcher
	if cfg.Fetcher.BrowserURL != "" {
		browser = fetcher.NewBrowserFetcher(fetcher.BrowserConfig{
			Endpoint: cfg.Fetcher.BrowserURL,
			Token:    cfg.Fetcher.BrowserToken,
			Timeout:  cfg.Fetcher.BrowserTimeout,
		})
	}

	registry := extractor.NewRegistry(extractor.NewStatusClassifier())
	return fetcher.NewMonitor(direct, browser, registry, log)
}

// SetupServices wires the monitoring pipeline. redisClient may be nil.
func SetupServices(deps *CommandDeps, db *DatabaseComponents, redisClient *redis.Client) *ServiceComponents {
	cfg, log := deps.Config, deps.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics(reg)

	gateway := notify.NewGateway(
		cfg.Notifications.ToGatewayConfig(),
		notify.NewHTTPSender(&infrahttp.ClientConfig{Timeout: cfg.Notifications.AttemptTimeout}),
		db.DeliveryLogs,
		log.With(infralogger.String("component", "notify")),
	)

	thresholds := cfg.Pricing.Thresholds()
	engine := pricing.NewEngine(db.Products, thresholds, log.With(infralogger.String("component", "pricing")))
	guard := pricing.NewMarginGuard(thresholds, db.MarginEvents, gateway, log.With(infralogger.String("component", "margin")))

	var failures monitor.FailureCounter = monitor.NewMemoryFailureCounter()
	var lock monitor.CycleLock
	if redisClient != nil {
		failures = monitor.NewRedisFailureCounter(redisClient)
		if cfg.Scheduler.DistributedLock {
			lock = coordination.NewLock(redisClient, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL)
		}
	}

	processor := monitor.NewProcessor(monitor.ProcessorDeps{
		Monitor:          NewPageMonitor(cfg, log.With(infralogger.String("component", "fetcher"))),
		Checks:           db.Products,
		Engine:           engine,
		Guard:            guard,
		Propagator:       newPropagator(cfg, log.With(infralogger.String("component", "channel"))),
		Notifier:         gateway,
		Failures:         failures,
		FailureThreshold: cfg.Scheduler.FailureThreshold,
		Metrics:          metrics,
		Logger:           log.With(infralogger.String("component", "processor")),
	})

	scheduler := monitor.NewScheduler(
		cfg.Scheduler.ToMonitorConfig(),
		db.Products,
		processor,
		lock,
		log.With(infralogger.String("component", "scheduler")),
	)

	return &ServiceComponents{Gateway: gateway, Scheduler: scheduler, Registry: reg}
}

func newPropagator(cfg *config.Config, log infralogger.Logger) monitor.ChannelPropagator {
	if cfg.Channels.BaseURL == "" {
		log.Warn("No channel platform configured, price changes stay local")
		return unlinkedChannels{}
	}

	client := channel.NewPlatformClient(cfg.Channels.BaseURL, cfg.Channels.CallTimeout)
	return channel.NewPropagator(client, cfg.Channels.Credentials, log,
		channel.WithCallTimeout(cfg.Channels.CallTimeout))
}

// unlinkedChannels stands in for the propagator when no platform is set up.
type unlinkedChannels struct{}

func (unlinkedChannels) Propagate(context.Context, *domain.Product, channel.Changes) channel.Propagation {
	return channel.Propagation{}
}

// closeGateway drains pending notifications.
func closeGateway(ctx context.Context, gw *notify.Gateway, log infralogger.Logger) {
	if err := gw.Close(ctx); err != nil && !errors.Is(err, notify.ErrGatewayClosed) {
		log.Warn("Pending notifications dropped", infralogger.Error(err))
	}
}
