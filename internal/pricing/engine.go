package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

var (
	// ErrInvalidSourcingPrice is returned for a non-positive sourcing price.
	ErrInvalidSourcingPrice = errors.New("sourcing price must be positive")
	// ErrInvalidPriceUnit is returned for a non-positive price unit.
	ErrInvalidPriceUnit = errors.New("price unit must be positive")
	// ErrNegativeMarginRate is returned for a negative target margin rate.
	ErrNegativeMarginRate = errors.New("target margin rate must not be negative")
	// ErrVersionConflict is returned when the product changed underneath a write.
	ErrVersionConflict = errors.New("product version conflict")
	// ErrProductNotFound is returned when the product row does not exist.
	ErrProductNotFound = errors.New("product not found")
)

// ComputeTargetPrice returns sourcing * (1 + rate/100) rounded to the nearest
// unit (half away from zero), never less than sourcing + unit.
func ComputeTargetPrice(sourcing, rate, unit decimal.Decimal) (decimal.Decimal, error) {
	if !sourcing.IsPositive() {
		return decimal.Zero, ErrInvalidSourcingPrice
	}
	if !unit.IsPositive() {
		return decimal.Zero, ErrInvalidPriceUnit
	}
	if rate.IsNegative() {
		return decimal.Zero, ErrNegativeMarginRate
	}

	target := domain.Markup(sourcing, rate)
	rounded := target.Div(unit).Round(0).Mul(unit)
	floor := sourcing.Add(unit)

	return decimal.Max(rounded, floor), nil
}

// PriceUpdate is the single row write of an applied price change.
type PriceUpdate struct {
	ProductID       int64
	ExpectedVersion int64
	SourcingPrice   decimal.Decimal
	SellingPrice    decimal.Decimal
	IsActive        bool
}

// Tx is the unit of work a pricing decision runs in.
type Tx interface {
	// LockProduct loads the product and holds a row lock until the end of the
	// transaction.
	LockProduct(ctx context.Context, productID int64) (*domain.Product, error)
	// UpdateSourcingPrice records an observed sourcing price without touching
	// the selling price.
	UpdateSourcingPrice(ctx context.Context, productID, expectedVersion int64, sourcing decimal.Decimal) error
	// UpdatePricing writes selling price, sourcing price and active flag and
	// bumps the version. ErrVersionConflict is returned on a version mismatch.
	UpdatePricing(ctx context.Context, update PriceUpdate) error
	InsertPriceAdjustment(ctx context.Context, record *domain.PriceAdjustmentRecord) error
}

// Store runs fn in a transaction, committing when fn returns nil.
type Store interface {
	WithProductTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Result describes what Apply did.
type Result struct {
	// Before is the product as locked, prior to any write.
	Before domain.Product
	// After is the product as committed.
	After domain.Product
	// SourcingChanged is false when the sourcing price was already recorded;
	// nothing was written in that case.
	SourcingChanged bool
	// Changed reports that a new selling price was written.
	Changed bool
	// Disabled reports that the product was deactivated for low margin.
	Disabled bool
	// Inactive reports that the locked product was already deactivated;
	// nothing was written.
	Inactive bool
	Record   *domain.PriceAdjustmentRecord
}

// Engine applies sourcing price changes to selling prices.
type Engine struct {
	store      Store
	thresholds Thresholds
	logger     infralogger.Logger
	now        func() time.Time
}

// NewEngine creates a pricing engine.
func NewEngine(store Store, th Thresholds, log infralogger.Logger) *Engine {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Engine{store: store, thresholds: th, logger: log, now: time.Now}
}

// Apply records a newly observed sourcing price and, when the recomputed
// target differs from the selling price, writes the new price together with
// exactly one adjustment record. The whole decision runs under a row lock so
// concurrent edits of the same product are serialized. Calling Apply again
// with the same sourcing price writes nothing.
func (e *Engine) Apply(ctx context.Context, productID int64, sourcing decimal.Decimal) (*Result, error) {
	var result *Result

	err := e.store.WithProductTx(ctx, func(ctx context.Context, tx Tx) error {
		product, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}

		r, err := e.decide(ctx, tx, product, sourcing)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply price for product %d: %w", productID, err)
	}

	if result.Changed {
		e.logger.Info("Selling price adjusted",
			infralogger.Int64("product_id", productID),
			infralogger.Stringer("old_selling_price", result.Before.SellingPrice),
			infralogger.Stringer("new_selling_price", result.After.SellingPrice),
			infralogger.Stringer("sourcing_price", sourcing),
			infralogger.Bool("disabled", result.Disabled),
		)
	}

	return result, nil
}

func (e *Engine) decide(ctx context.Context, tx Tx, product *domain.Product, sourcing decimal.Decimal) (*Result, error) {
	result := &Result{Before: *product, After: *product}

	// Deactivation is terminal until an operator re-enables the product.
	if !product.IsActive {
		result.Inactive = true
		return result, nil
	}

	if product.SourcingPrice.Valid && product.SourcingPrice.Decimal.Equal(sourcing) {
		return result, nil
	}
	result.SourcingChanged = true

	target, err := ComputeTargetPrice(sourcing, product.TargetMarginRate, product.PriceUnit)
	if err != nil {
		return nil, err
	}

	result.After.SourcingPrice = decimal.NewNullDecimal(sourcing)

	if target.Equal(product.SellingPrice) {
		if err := tx.UpdateSourcingPrice(ctx, product.ID, product.Version, sourcing); err != nil {
			return nil, fmt.Errorf("update sourcing price: %w", err)
		}
		result.After.Version++
		return result, nil
	}

	newRate := domain.MarginRate(target, sourcing)
	isActive := product.IsActive
	reason := domain.ReasonSourcingPriceChange
	if !product.SourcingPrice.Valid {
		reason = domain.ReasonInitialPricing
	}
	if product.AutoDisableOnLowMargin && newRate.LessThan(e.thresholds.MinMarginRate) {
		isActive = false
		result.Disabled = true
		reason = domain.ReasonLowMarginDisable
	}

	if err := tx.UpdatePricing(ctx, PriceUpdate{
		ProductID:       product.ID,
		ExpectedVersion: product.Version,
		SourcingPrice:   sourcing,
		SellingPrice:    target,
		IsActive:        isActive,
	}); err != nil {
		return nil, fmt.Errorf("update pricing: %w", err)
	}

	record := &domain.PriceAdjustmentRecord{
		ProductID:        product.ID,
		OldSellingPrice:  product.SellingPrice,
		NewSellingPrice:  target,
		OldSourcingPrice: product.SourcingPrice,
		NewSourcingPrice: sourcing,
		OldMarginRate:    product.CurrentMarginRate().Round(2),
		NewMarginRate:    newRate.Round(2),
		Reason:           reason,
		CreatedAt:        e.now().UTC(),
	}
	if err := tx.InsertPriceAdjustment(ctx, record); err != nil {
		return nil, fmt.Errorf("insert price adjustment: %w", err)
	}

	result.After.SellingPrice = target
	result.After.IsActive = isActive
	result.After.Version++
	result.Changed = true
	result.Record = record
	return result, nil
}
