package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentReason explains why a price adjustment was applied.
type AdjustmentReason string

const (
	ReasonSourcingPriceChange AdjustmentReason = "sourcing_price_change"
	ReasonInitialPricing      AdjustmentReason = "initial_pricing"
	ReasonLowMarginDisable    AdjustmentReason = "low_margin_disable"
)

// PriceAdjustmentRecord is the append-only audit entry written exactly once per
// applied selling price change.
type PriceAdjustmentRecord struct {
	ID               int64               `db:"id"                 json:"id"`
	ProductID        int64               `db:"product_id"         json:"product_id"`
	OldSellingPrice  decimal.Decimal     `db:"old_selling_price"  json:"old_selling_price"`
	NewSellingPrice  decimal.Decimal     `db:"new_selling_price"  json:"new_selling_price"`
	OldSourcingPrice decimal.NullDecimal `db:"old_sourcing_price" json:"old_sourcing_price"`
	NewSourcingPrice decimal.Decimal     `db:"new_sourcing_price" json:"new_sourcing_price"`
	OldMarginRate    decimal.Decimal     `db:"old_margin_rate"    json:"old_margin_rate"`
	NewMarginRate    decimal.Decimal     `db:"new_margin_rate"    json:"new_margin_rate"`
	Reason           AdjustmentReason    `db:"reason"             json:"reason"`
	CreatedAt        time.Time           `db:"created_at"         json:"created_at"`
}
