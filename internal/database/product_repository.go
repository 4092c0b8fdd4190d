package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/pricing"
)

const productColumns = `id, name, sourcing_url, sourcing_source, sourcing_price, selling_price,
	target_margin_rate, price_unit, auto_disable_on_low_margin, is_active, channel_codes,
	thumbnail_url, last_status, last_checked_at, version, created_at, updated_at`

// ProductRepository reads products and runs locked pricing transactions.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListDue returns up to limit active products, never-checked first, then
// least recently checked.
func (r *ProductRepository) ListDue(ctx context.Context, limit int) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE is_active = TRUE
		ORDER BY last_checked_at ASC NULLS FIRST, id ASC
		LIMIT $1`

	var products []domain.Product
	if err := r.db.SelectContext(ctx, &products, query, limit); err != nil {
		return nil, fmt.Errorf("list due products: %w", err)
	}
	return products, nil
}

// GetByID loads one product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var product domain.Product
	err := r.db.GetContext(ctx, &product, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pricing.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &product, nil
}

// MarkChecked stamps last_checked_at. A nil status keeps last_status.
func (r *ProductRepository) MarkChecked(ctx context.Context, productID int64, status *domain.Status, at time.Time) error {
	query := `UPDATE products
		SET last_checked_at = $2, last_status = COALESCE($3, last_status), updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, productID, at, status)
	if markErr := execRequireRows(result, err, pricing.ErrProductNotFound); markErr != nil {
		return fmt.Errorf("mark product %d checked: %w", productID, markErr)
	}
	return nil
}

// WithProductTx implements pricing.Store. fn's writes are committed only when
// it returns nil.
func (r *ProductRepository) WithProductTx(ctx context.Context, fn func(ctx context.Context, tx pricing.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if fnErr := fn(ctx, &productTx{tx: tx}); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(fnErr, fmt.Errorf("rollback: %w", rbErr))
		}
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type productTx struct {
	tx *sqlx.Tx
}

func (t *productTx) LockProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	var product domain.Product
	err := t.tx.GetContext(ctx, &product, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pricing.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (t *productTx) UpdateSourcingPrice(ctx context.Context, productID, expectedVersion int64, sourcing decimal.Decimal) error {
	query := `UPDATE products
		SET sourcing_price = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`

	result, err := t.tx.ExecContext(ctx, query, productID, expectedVersion, sourcing)
	return execRequireRows(result, err, pricing.ErrVersionConflict)
}

func (t *productTx) UpdatePricing(ctx context.Context, u pricing.PriceUpdate) error {
	query := `UPDATE products
		SET sourcing_price = $3, selling_price = $4, is_active = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`

	result, err := t.tx.ExecContext(ctx, query,
		u.ProductID, u.ExpectedVersion, u.SourcingPrice, u.SellingPrice, u.IsActive)
	return execRequireRows(result, err, pricing.ErrVersionConflict)
}

func (t *productTx) InsertPriceAdjustment(ctx context.Context, rec *domain.PriceAdjustmentRecord) error {
	query := `INSERT INTO price_adjustments (
			product_id, old_selling_price, new_selling_price, old_sourcing_price,
			new_sourcing_price, old_margin_rate, new_margin_rate, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return t.tx.QueryRowxContext(ctx, query,
		rec.ProductID, rec.OldSellingPrice, rec.NewSellingPrice, rec.OldSourcingPrice,
		rec.NewSourcingPrice, rec.OldMarginRate, rec.NewMarginRate, rec.Reason, rec.CreatedAt,
	).Scan(&rec.ID)
}
