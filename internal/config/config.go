// Package config defines the pricewatch service configuration.
package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	infraconfig "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/config"
	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/channel"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/database"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/monitor"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/notify"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/pricing"
)

// Default service configuration values.
const (
	defaultServiceName    = "pricewatch"
	defaultServiceVersion = "1.0.0"
	defaultOpsPort        = 8095
)

// Default database configuration values.
const (
	defaultDBHost     = "localhost"
	defaultDBPort     = 5432
	defaultDBUser     = "postgres"
	defaultDBName     = "pricewatch"
	defaultDBSSLMode  = "disable"
	defaultDBMaxConns = 10
)

const (
	defaultDirectTimeout  = 15 * time.Second
	defaultBrowserTimeout = 60 * time.Second
	defaultLockKey        = "pricewatch:cycle"
)

// Config holds the application configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Logging       infralogger.Config  `yaml:"logging"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         infraredis.Config   `yaml:"redis"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Fetcher       FetcherConfig       `yaml:"fetcher"`
	Channels      ChannelsConfig      `yaml:"channels"`
	Notifications NotificationsConfig `yaml:"notifications"`
	OpsServer     OpsServerConfig     `yaml:"ops_server"`
}

// ServiceConfig holds service identity.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host           string `env:"POSTGRES_PRICEWATCH_HOST"     yaml:"host"`
	Port           int    `env:"POSTGRES_PRICEWATCH_PORT"     yaml:"port"`
	User           string `env:"POSTGRES_PRICEWATCH_USER"     yaml:"user"`
	Password       string `env:"POSTGRES_PRICEWATCH_PASSWORD" yaml:"password"`
	Database       string `env:"POSTGRES_PRICEWATCH_DB"       yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// ToDatabaseConfig converts to the connection settings of the database package.
func (d DatabaseConfig) ToDatabaseConfig() database.Config {
	return database.Config{
		Host:         d.Host,
		Port:         strconv.Itoa(d.Port),
		User:         d.User,
		Password:     d.Password,
		DBName:       d.Database,
		SSLMode:      d.SSLMode,
		MaxOpenConns: d.MaxConnections,
	}
}

// SchedulerConfig holds the monitoring cadence.
type SchedulerConfig struct {
	Interval         time.Duration `env:"SCHEDULER_INTERVAL" yaml:"interval"`
	PageLimit        int           `yaml:"page_limit"`
	Pacing           time.Duration `yaml:"pacing"`
	Concurrency      int           `yaml:"concurrency"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RunOnStart       bool          `env:"SCHEDULER_RUN_ON_START" yaml:"run_on_start"`
	// DistributedLock makes the cycle single-flight across replicas. Requires Redis.
	DistributedLock bool          `yaml:"distributed_lock"`
	LockKey         string        `yaml:"lock_key"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

// ToMonitorConfig converts to scheduler settings.
func (s SchedulerConfig) ToMonitorConfig() monitor.Config {
	return monitor.Config{
		Interval:    s.Interval,
		PageLimit:   s.PageLimit,
		Pacing:      s.Pacing,
		Concurrency: s.Concurrency,
		RunOnStart:  s.RunOnStart,
	}
}

// PricingConfig holds the margin thresholds, in percent. A rate written in
// the file is kept even when it is zero.
type PricingConfig struct {
	MinMarginRate         float64 `env:"PRICING_MIN_MARGIN_RATE"         yaml:"min_margin_rate"`
	RecommendedMarginRate float64 `env:"PRICING_RECOMMENDED_MARGIN_RATE" yaml:"recommended_margin_rate"`

	decoded bool
}

// UnmarshalYAML seeds the defaults before decoding so omitted keys keep them.
func (p *PricingConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain PricingConfig
	raw := plain{
		MinMarginRate:         pricing.DefaultMinMarginRate,
		RecommendedMarginRate: pricing.DefaultRecommendedMarginRate,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = PricingConfig(raw)
	p.decoded = true
	return nil
}

// Thresholds converts to pricing thresholds.
func (p PricingConfig) Thresholds() pricing.Thresholds {
	return pricing.NewThresholds(p.MinMarginRate, p.RecommendedMarginRate)
}

// FetcherConfig holds the HTML transport settings. The browser proxy is
// optional.
type FetcherConfig struct {
	DirectTimeout  time.Duration `yaml:"direct_timeout"`
	UserAgent      string        `yaml:"user_agent"`
	BrowserURL     string        `env:"BROWSER_PROXY_URL"   yaml:"browser_url"`
	BrowserToken   string        `env:"BROWSER_PROXY_TOKEN" yaml:"browser_token"`
	BrowserTimeout time.Duration `yaml:"browser_timeout"`
}

// ChannelsConfig holds the seller platform endpoint and per-channel
// credentials keyed by channel id.
type ChannelsConfig struct {
	BaseURL     string                         `env:"CHANNEL_PLATFORM_URL" yaml:"base_url"`
	CallTimeout time.Duration                  `yaml:"call_timeout"`
	Credentials map[string]channel.Credentials `yaml:"credentials"`
}

// NotificationsConfig holds the notification destinations and retry policy.
type NotificationsConfig struct {
	Destinations   []notify.Destination `yaml:"destinations"`
	MaxAttempts    int                  `yaml:"max_attempts"`
	InitialDelay   time.Duration        `yaml:"initial_delay"`
	AttemptTimeout time.Duration        `yaml:"attempt_timeout"`
}

// ToGatewayConfig converts to gateway settings.
func (n NotificationsConfig) ToGatewayConfig() notify.Config {
	return notify.Config{
		Destinations:   n.Destinations,
		MaxAttempts:    n.MaxAttempts,
		InitialDelay:   n.InitialDelay,
		AttemptTimeout: n.AttemptTimeout,
	}
}

// OpsServerConfig holds the health and metrics endpoint settings.
type OpsServerConfig struct {
	Enabled bool `env:"OPS_SERVER_ENABLED" yaml:"enabled"`
	Port    int  `env:"OPS_SERVER_PORT"    yaml:"port"`
}

// Load loads configuration from a YAML file, applies defaults, then env overrides.
func Load(path string) (*Config, error) {
	cfg, loadErr := infraconfig.LoadWithDefaults(path, setDefaults)
	if loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := infraconfig.ValidateOneOf("logging.format", c.Logging.Format, "json", "console"); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("database.host", c.Database.Host); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("database.database", c.Database.Database); err != nil {
		return err
	}
	if err := infraconfig.ValidatePort("database.port", c.Database.Port); err != nil {
		return err
	}
	if c.OpsServer.Enabled {
		if err := infraconfig.ValidatePort("ops_server.port", c.OpsServer.Port); err != nil {
			return err
		}
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	if err := infraconfig.ValidateRange("scheduler.concurrency", c.Scheduler.Concurrency, 1, monitor.MaxConcurrency); err != nil {
		return err
	}
	if c.Scheduler.DistributedLock && !c.Redis.Enabled {
		return &infraconfig.ValidationError{Field: "scheduler.distributed_lock", Message: "requires redis.enabled"}
	}
	if c.Fetcher.BrowserURL != "" {
		if err := infraconfig.ValidateURL("fetcher.browser_url", c.Fetcher.BrowserURL); err != nil {
			return err
		}
	}
	if err := c.validateChannels(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePricing() error {
	p := c.Pricing
	if err := infraconfig.ValidateNonNegative("pricing.min_margin_rate", p.MinMarginRate); err != nil {
		return err
	}
	if p.RecommendedMarginRate < p.MinMarginRate {
		return &infraconfig.ValidationError{
			Field:   "pricing.recommended_margin_rate",
			Message: "must not be below min_margin_rate",
		}
	}
	return nil
}

func (c *Config) validateChannels() error {
	if c.Channels.BaseURL == "" {
		return nil
	}
	if err := infraconfig.ValidateURL("channels.base_url", c.Channels.BaseURL); err != nil {
		return err
	}
	if len(c.Channels.Credentials) == 0 {
		return &infraconfig.ValidationError{Field: "channels.credentials", Message: "is required when base_url is set"}
	}
	for id, creds := range c.Channels.Credentials {
		if creds.APIKey == "" {
			return &infraconfig.ValidationError{Field: "channels.credentials." + id + ".api_key", Message: "is required"}
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	seen := make(map[string]bool, len(c.Notifications.Destinations))
	for i, d := range c.Notifications.Destinations {
		field := fmt.Sprintf("notifications.destinations[%d]", i)
		if d.Name == "" {
			return &infraconfig.ValidationError{Field: field + ".name", Message: "is required"}
		}
		if seen[d.Name] {
			return &infraconfig.ValidationError{Field: field + ".name", Message: "must be unique"}
		}
		seen[d.Name] = true

		kind := string(d.Kind)
		if err := infraconfig.ValidateOneOf(field+".kind", kind,
			string(notify.KindWebhook), string(notify.KindSlack), string(notify.KindDiscord)); err != nil {
			return err
		}
		if d.Enabled {
			if err := infraconfig.ValidateURL(field+".url", d.URL); err != nil {
				return err
			}
		}
	}
	return nil
}

// setDefaults applies default values to all configuration sections.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	cfg.Logging.SetDefaults()
	setDatabaseDefaults(&cfg.Database)
	setSchedulerDefaults(&cfg.Scheduler)
	setPricingDefaults(&cfg.Pricing)
	setFetcherDefaults(&cfg.Fetcher)
	setNotificationDefaults(&cfg.Notifications)

	if cfg.OpsServer.Port == 0 {
		cfg.OpsServer.Port = defaultOpsPort
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
}

func setSchedulerDefaults(s *SchedulerConfig) {
	if s.Interval == 0 {
		s.Interval = monitor.DefaultInterval
	}
	if s.PageLimit == 0 {
		s.PageLimit = monitor.DefaultPageLimit
	}
	// A negative pacing disables it; zero takes the default.
	if s.Pacing == 0 {
		s.Pacing = monitor.DefaultPacing
	}
	if s.Concurrency == 0 {
		s.Concurrency = 1
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = monitor.DefaultFailureThreshold
	}
	if s.LockKey == "" {
		s.LockKey = defaultLockKey
	}
}

func setPricingDefaults(p *PricingConfig) {
	if p.decoded {
		return
	}
	if p.MinMarginRate == 0 {
		p.MinMarginRate = pricing.DefaultMinMarginRate
	}
	if p.RecommendedMarginRate == 0 {
		p.RecommendedMarginRate = pricing.DefaultRecommendedMarginRate
	}
}

func setFetcherDefaults(f *FetcherConfig) {
	if f.DirectTimeout == 0 {
		f.DirectTimeout = defaultDirectTimeout
	}
	if f.BrowserTimeout == 0 {
		f.BrowserTimeout = defaultBrowserTimeout
	}
}

func setNotificationDefaults(n *NotificationsConfig) {
	for i := range n.Destinations {
		if n.Destinations[i].Kind == "" {
			n.Destinations[i].Kind = notify.KindWebhook
		}
	}
}
