package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a tracked listing: where it is sourced from and what it sells for.
type Product struct {
	ID                     int64               `db:"id"                         json:"id"`
	Name                   string              `db:"name"                       json:"name"`
	SourcingURL            string              `db:"sourcing_url"               json:"sourcing_url"`
	SourcingSource         Source              `db:"sourcing_source"            json:"sourcing_source"`
	SourcingPrice          decimal.NullDecimal `db:"sourcing_price"             json:"sourcing_price"`
	SellingPrice           decimal.Decimal     `db:"selling_price"              json:"selling_price"`
	TargetMarginRate       decimal.Decimal     `db:"target_margin_rate"         json:"target_margin_rate"`
	PriceUnit              decimal.Decimal     `db:"price_unit"                 json:"price_unit"`
	AutoDisableOnLowMargin bool                `db:"auto_disable_on_low_margin" json:"auto_disable_on_low_margin"`
	IsActive               bool                `db:"is_active"                  json:"is_active"`
	ChannelCodes           ChannelCodes        `db:"channel_codes"              json:"channel_codes"`
	ThumbnailURL           *string             `db:"thumbnail_url"              json:"thumbnail_url,omitempty"`
	LastStatus             *Status             `db:"last_status"                json:"last_status,omitempty"`
	LastCheckedAt          *time.Time          `db:"last_checked_at"            json:"last_checked_at,omitempty"`
	Version                int64               `db:"version"                    json:"version"`
	CreatedAt              time.Time           `db:"created_at"                 json:"created_at"`
	UpdatedAt              time.Time           `db:"updated_at"                 json:"updated_at"`
}

// CurrentMarginRate returns the margin rate of the stored prices, or zero when
// no sourcing price has been observed yet.
func (p *Product) CurrentMarginRate() decimal.Decimal {
	if !p.SourcingPrice.Valid {
		return decimal.Zero
	}
	return MarginRate(p.SellingPrice, p.SourcingPrice.Decimal)
}

// ChannelCodes maps a sales channel id to the product's external code on that
// channel. It is stored as JSONB.
type ChannelCodes map[string]string

// IDs returns the channel ids in sorted order.
func (c ChannelCodes) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scan implements sql.Scanner.
func (c *ChannelCodes) Scan(value any) error {
	if value == nil {
		*c = ChannelCodes{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for ChannelCodes")
	}

	if len(data) == 0 {
		*c = ChannelCodes{}
		return nil
	}

	return json.Unmarshal(data, c)
}

// Value implements driver.Valuer.
func (c ChannelCodes) Value() (driver.Value, error) {
	if len(c) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}
