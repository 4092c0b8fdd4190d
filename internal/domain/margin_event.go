package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity grades a margin event.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// MarginKind classifies a margin event.
type MarginKind string

const (
	MarginReverse    MarginKind = "reverse_margin"
	MarginLow        MarginKind = "low_margin"
	MarginSuboptimal MarginKind = "suboptimal_margin"
)

// MarginEvent is an append-only record of an adverse margin detected after a
// sourcing price change.
//
// Amount depends on Kind: the loss for reverse_margin, the shortfall to the
// minimum price for low_margin, and the recommended price for suboptimal_margin.
type MarginEvent struct {
	ID            int64           `db:"id"             json:"id"`
	ProductID     int64           `db:"product_id"     json:"product_id"`
	Severity      Severity        `db:"severity"       json:"severity"`
	Kind          MarginKind      `db:"kind"           json:"kind"`
	SellingPrice  decimal.Decimal `db:"selling_price"  json:"selling_price"`
	SourcingPrice decimal.Decimal `db:"sourcing_price" json:"sourcing_price"`
	Margin        decimal.Decimal `db:"margin"         json:"margin"`
	MarginRate    decimal.Decimal `db:"margin_rate"    json:"margin_rate"`
	Amount        decimal.Decimal `db:"amount"         json:"amount"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
}
