// Package channel pushes product changes to external sales channels.
package channel

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Field names a product attribute that can be pushed to a channel.
type Field string

const (
	FieldName      Field = "name"
	FieldPrice     Field = "price"
	FieldThumbnail Field = "thumbnail"
	FieldCategory  Field = "category"
)

// ErrMissingCredentials is reported for channels without configured credentials.
var ErrMissingCredentials = errors.New("no credentials configured for channel")

// Credentials authenticate calls for one channel on the seller platform.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	ShopID    string `yaml:"shop_id"`
}

// Changes is the subset of product fields to push. Nil fields are left as is.
type Changes struct {
	Name         *string
	Price        *decimal.Decimal
	ThumbnailURL *string
	CategoryCode *string
}

// PriceChange builds a Changes carrying only a price.
func PriceChange(price decimal.Decimal) Changes {
	return Changes{Price: &price}
}

// Fields lists the fields set in c.
func (c Changes) Fields() []Field {
	var fields []Field
	if c.Name != nil {
		fields = append(fields, FieldName)
	}
	if c.Price != nil {
		fields = append(fields, FieldPrice)
	}
	if c.ThumbnailURL != nil {
		fields = append(fields, FieldThumbnail)
	}
	if c.CategoryCode != nil {
		fields = append(fields, FieldCategory)
	}
	return fields
}

// UpdateRequest is one channel update call.
type UpdateRequest struct {
	ChannelID    string
	ExternalCode string
	Changes      Changes
}

// UpdateResponse is a channel's answer to an update.
type UpdateResponse struct {
	Success    bool
	Message    string
	ExternalID string
}

// Client performs a single update on one channel.
type Client interface {
	Update(ctx context.Context, creds Credentials, req UpdateRequest) (UpdateResponse, error)
}

// PropagationError is the failure of one channel update.
type PropagationError struct {
	ChannelID string
	Err       error
}

func (e *PropagationError) Error() string {
	return "channel " + e.ChannelID + ": " + e.Err.Error()
}

func (e *PropagationError) Unwrap() error { return e.Err }
