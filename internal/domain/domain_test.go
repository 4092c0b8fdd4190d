package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

func TestMarginRate(t *testing.T) {
	t.Parallel()

	rate := domain.MarginRate(decimal.NewFromInt(14000), decimal.NewFromInt(10000))
	assert.True(t, rate.Equal(decimal.NewFromInt(40)), "got %s", rate)

	assert.True(t, domain.MarginRate(decimal.NewFromInt(100), decimal.Zero).IsZero())
}

func TestMarkup_IsExact(t *testing.T) {
	t.Parallel()

	got := domain.Markup(decimal.NewFromInt(10000), decimal.NewFromInt(10))
	assert.True(t, got.Equal(decimal.NewFromInt(11000)), "got %s", got)
}

func TestChannelCodes_ScanAndValue(t *testing.T) {
	t.Parallel()

	var codes domain.ChannelCodes
	require.NoError(t, codes.Scan([]byte(`{"smartstore":"A-1","coupang":"C-9"}`)))
	assert.Equal(t, []string{"coupang", "smartstore"}, codes.IDs())

	v, err := codes.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"smartstore":"A-1","coupang":"C-9"}`, string(v.([]byte)))

	var empty domain.ChannelCodes
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)

	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	require.Error(t, empty.Scan(42))
}

func TestSnapshot_PartialAndFailed(t *testing.T) {
	t.Parallel()

	name := "kettle"
	partial := domain.Snapshot{Status: domain.StatusAvailable, Name: &name}
	assert.True(t, partial.IsPartial())
	assert.False(t, partial.Failed())

	failed := domain.ErrorSnapshot("HTML fetch failed", nil)
	assert.True(t, failed.Failed())
	assert.False(t, failed.IsPartial())
}

func TestProduct_CurrentMarginRate(t *testing.T) {
	t.Parallel()

	p := domain.Product{SellingPrice: decimal.NewFromInt(13000)}
	assert.True(t, p.CurrentMarginRate().IsZero())

	p.SourcingPrice = decimal.NewNullDecimal(decimal.NewFromInt(10000))
	assert.True(t, p.CurrentMarginRate().Equal(decimal.NewFromInt(30)))
}
