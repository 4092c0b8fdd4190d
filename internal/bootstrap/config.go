package bootstrap

import (
	"fmt"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/config"
)

// CommandDeps holds the dependencies shared by every command.
type CommandDeps struct {
	Logger infralogger.Logger
	Config *config.Config
}

// NewCommandDeps loads the configuration at path and creates the logger.
func NewCommandDeps(path string) (*CommandDeps, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &CommandDeps{Logger: log, Config: cfg}, nil
}

// CreateLogger builds the service logger scoped with the service name.
func CreateLogger(cfg *config.Config) (infralogger.Logger, error) {
	log, err := infralogger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return log.With(
		infralogger.String("service", cfg.Service.Name),
		infralogger.String("version", cfg.Service.Version),
	), nil
}
