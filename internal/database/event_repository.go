package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// MarginEventRepository appends margin events.
type MarginEventRepository struct {
	db *sqlx.DB
}

// NewMarginEventRepository creates a margin event repository.
func NewMarginEventRepository(db *sqlx.DB) *MarginEventRepository {
	return &MarginEventRepository{db: db}
}

// InsertMarginEvent stores event and sets its ID.
func (r *MarginEventRepository) InsertMarginEvent(ctx context.Context, event *domain.MarginEvent) error {
	query := `INSERT INTO margin_events (
			product_id, severity, kind, selling_price, sourcing_price,
			margin, margin_rate, amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		event.ProductID, event.Severity, event.Kind, event.SellingPrice, event.SourcingPrice,
		event.Margin, event.MarginRate, event.Amount, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("insert margin event: %w", err)
	}
	return nil
}

// ListMarginEvents returns the most recent events for a product.
func (r *MarginEventRepository) ListMarginEvents(ctx context.Context, productID int64, limit int) ([]domain.MarginEvent, error) {
	query := `SELECT id, product_id, severity, kind, selling_price, sourcing_price,
			margin, margin_rate, amount, created_at
		FROM margin_events
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	var events []domain.MarginEvent
	if err := r.db.SelectContext(ctx, &events, query, productID, limit); err != nil {
		return nil, fmt.Errorf("list margin events: %w", err)
	}
	return events, nil
}

// DeliveryLogRepository appends notification delivery attempts.
type DeliveryLogRepository struct {
	db *sqlx.DB
}

// NewDeliveryLogRepository creates a delivery log repository.
func NewDeliveryLogRepository(db *sqlx.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// InsertDeliveryLog stores one attempt.
func (r *DeliveryLogRepository) InsertDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error {
	query := `INSERT INTO notification_delivery_logs (
			destination, event_type, attempt, success, status_code, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		log.Destination, log.EventType, log.Attempt, log.Success, log.StatusCode, log.Error, log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}
