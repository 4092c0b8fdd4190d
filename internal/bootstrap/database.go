package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/config"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/database"
)

// DatabaseComponents holds the connection and repositories.
type DatabaseComponents struct {
	DB           *sqlx.DB
	Products     *database.ProductRepository
	MarginEvents *database.MarginEventRepository
	DeliveryLogs *database.DeliveryLogRepository
}

// SetupDatabase connects to PostgreSQL and creates the repositories.
func SetupDatabase(ctx context.Context, cfg *config.Config) (*DatabaseComponents, error) {
	db, err := database.NewPostgresConnection(ctx, cfg.Database.ToDatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &DatabaseComponents{
		DB:           db,
		Products:     database.NewProductRepository(db),
		MarginEvents: database.NewMarginEventRepository(db),
		DeliveryLogs: database.NewDeliveryLogRepository(db),
	}, nil
}
