package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/extractor"
)

const pageURL = "https://shop.example.com/products/42"

func TestGeneric_StrategyPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		html         string
		wantStrategy string
		wantName     string
		wantPrice    int64
		wantStatus   domain.Status
		wantThumb    string
	}{
		{
			name: "json-ld product beats meta tags",
			html: `<html><head>
				<meta property="og:title" content="OG Kettle"><meta property="product:price:amount" content="9900">
				<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Steel Kettle",
				"image":["/img/kettle.jpg"],"offers":{"@type":"Offer","price":"15900","availability":"https://schema.org/InStock"}}</script>
				</head><body></body></html>`,
			wantStrategy: extractor.StrategyJSONLD,
			wantName:     "Steel Kettle",
			wantPrice:    15900,
			wantStatus:   domain.StatusAvailable,
			wantThumb:    "https://shop.example.com/img/kettle.jpg",
		},
		{
			name: "json-ld graph with offer list and availability",
			html: `<script type="application/ld+json">{"@graph":[{"@type":"WebPage"},{"@type":["Product"],"name":"Mug",
				"image":{"url":"//cdn.example.com/mug.png"},"offers":[{"lowPrice":8900,"availability":"OutOfStock"}]}]}</script>`,
			wantStrategy: extractor.StrategyJSONLD,
			wantName:     "Mug",
			wantPrice:    8900,
			wantStatus:   domain.StatusOutOfStock,
			wantThumb:    "https://cdn.example.com/mug.png",
		},
		{
			name: "open graph tags",
			html: `<head><meta property="og:title" content="Pan">
				<meta property="og:price:amount" content="23,000"><meta property="og:image" content="//cdn.example.com/pan.jpg"></head>`,
			wantStrategy: extractor.StrategyMeta,
			wantName:     "Pan",
			wantPrice:    23000,
			wantStatus:   domain.StatusAvailable,
			wantThumb:    "https://cdn.example.com/pan.jpg",
		},
		{
			name: "microdata",
			html: `<div itemscope itemtype="https://schema.org/Product"><span itemprop="name">Pot</span>
				<img itemprop="image" src="/pot.jpg"><meta itemprop="price" content="31000">
				<link itemprop="availability" href="https://schema.org/Discontinued"></div>`,
			wantStrategy: extractor.StrategyMicrodata,
			wantName:     "Pot",
			wantPrice:    31000,
			wantStatus:   domain.StatusDiscontinued,
			wantThumb:    "https://shop.example.com/pot.jpg",
		},
		{
			name: "css heuristic",
			html: `<h1 class="goods_name">Blender</h1><div class="product_image"><img src="/b.jpg"></div>
				<span class="sale_price">45,500원</span><button class="btn_buy">구매</button>`,
			wantStrategy: extractor.StrategyCSS,
			wantName:     "Blender",
			wantPrice:    45500,
			wantStatus:   domain.StatusAvailable,
			wantThumb:    "https://shop.example.com/b.jpg",
		},
		{
			name: "regex over visible text",
			html: `<html><head><title>Toaster | Example Shop</title></head>
				<body><p>오늘만 39,000원</p><script>var x = "1원";</script></body></html>`,
			wantStrategy: extractor.StrategyRegex,
			wantName:     "Toaster",
			wantPrice:    39000,
			wantStatus:   domain.StatusAvailable,
		},
	}

	registry := extractor.NewRegistry(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			snap := registry.Extract(tt.html, pageURL, domain.SourceGeneric)

			require.False(t, snap.Failed(), snap.Details)
			assert.Equal(t, tt.wantStrategy, snap.Strategy)
			require.NotNil(t, snap.Name)
			assert.Equal(t, tt.wantName, *snap.Name)
			require.True(t, snap.Price.Valid)
			assert.Equal(t, tt.wantPrice, snap.Price.Decimal.IntPart())
			assert.Equal(t, tt.wantStatus, snap.Status)
			if tt.wantThumb != "" {
				require.NotNil(t, snap.ThumbnailURL)
				assert.Equal(t, tt.wantThumb, *snap.ThumbnailURL)
			}
		})
	}
}

func TestGeneric_NameOnlyIsPartial(t *testing.T) {
	t.Parallel()

	snap := extractor.NewRegistry(nil).Extract(
		`<head><meta property="og:title" content="Mystery Box"></head><body>가격문의</body>`,
		pageURL, domain.SourceGeneric,
	)

	assert.True(t, snap.IsPartial())
	assert.Equal(t, extractor.StrategyMeta, snap.Strategy)
	assert.False(t, snap.Price.Valid)
}

func TestGeneric_NoNameIsError(t *testing.T) {
	t.Parallel()

	snap := extractor.NewRegistry(nil).Extract(`<html><body><p>12,900원</p></body></html>`, pageURL, domain.SourceGeneric)

	assert.Equal(t, domain.StatusError, snap.Status)
	require.ErrorIs(t, snap.Err, extractor.ErrNoMatch)
}
