package extractor

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// Strategy names, in priority order.
const (
	StrategyJSONLD    = "json-ld"
	StrategyMeta      = "meta"
	StrategyMicrodata = "microdata"
	StrategyCSS       = "css"
	StrategyRegex     = "regex"
)

// genericBuyAreaSelectors locate common purchase buttons on unknown sites.
var genericBuyAreaSelectors = []string{
	"[class*='btn_buy'], [class*='btn-buy'], [class*='buy-button'], [class*='buyButton']",
	"button[id*='buy'], a[id*='buy'], button[name*='buy']",
	"[class*='add-to-cart'], [class*='btn_cart'], button[id*='cart']",
}

var (
	cssNameSelectors = []string{
		"[class*='product-name']", "[class*='product_name']", "[class*='prd_name']",
		"[class*='goods_name']", "[class*='item_title']", "#productName", "h1",
	}
	cssPriceSelectors = []string{
		"[class*='sale_price']", "[class*='sale-price']", "[class*='final_price']",
		"[class*='selling_price']", "[class*='price_real']", "[class*='total_price']",
		".price", "[class*='price']",
	}
	cssImageSelectors = []string{
		"#mainImage", "#mainImg", "[class*='product_image'] img", "[class*='product-image'] img",
		"[class*='thumb'] img",
	}
)

// candidate is what one strategy read from the page.
type candidate struct {
	name      string
	price     decimal.NullDecimal
	thumbnail string
	// status is set only when the page declares availability explicitly.
	status domain.Status
}

func (c candidate) complete() bool { return c.name != "" && c.price.Valid }

type strategy struct {
	name string
	run  func(doc *goquery.Document) candidate
}

// GenericExtractor reads pages of unknown retailers by trying structured data
// first and free-text heuristics last.
type GenericExtractor struct {
	classifier *StatusClassifier
	strategies []strategy
}

// NewGenericExtractor builds the generic fallback extractor.
func NewGenericExtractor(classifier *StatusClassifier) *GenericExtractor {
	return &GenericExtractor{
		classifier: classifier,
		strategies: []strategy{
			{name: StrategyJSONLD, run: jsonLDStrategy},
			{name: StrategyMeta, run: metaStrategy},
			{name: StrategyMicrodata, run: microdataStrategy},
			{name: StrategyCSS, run: cssStrategy},
			{name: StrategyRegex, run: regexStrategy},
		},
	}
}

// Source implements Extractor.
func (e *GenericExtractor) Source() domain.Source { return domain.SourceGeneric }

// Extract implements Extractor. The first strategy yielding name and price
// wins; otherwise the first name-only result is returned as a partial.
func (e *GenericExtractor) Extract(doc *goquery.Document, pageURL *url.URL) domain.Snapshot {
	var (
		best      candidate
		bestName  string
		thumbnail string
	)

	for _, s := range e.strategies {
		c := s.run(doc)
		if thumbnail == "" {
			thumbnail = c.thumbnail
		}
		if c.complete() {
			best, bestName = c, s.name
			break
		}
		if bestName == "" && c.name != "" {
			best, bestName = c, s.name
		}
	}

	if bestName == "" {
		return domain.ErrorSnapshot(ErrNoMatch.Error(), ErrNoMatch)
	}

	if best.thumbnail != "" {
		thumbnail = best.thumbnail
	}

	status := best.status
	if status == "" {
		status = e.classifier.Classify(doc, genericBuyAreaSelectors, best.price)
	}

	snap := domain.Snapshot{
		Name:         strPtr(best.name),
		Price:        best.price,
		ThumbnailURL: ResolveURL(pageURL, thumbnail),
		Status:       status,
		Strategy:     bestName,
	}
	snap.Details = describe(snap)
	return snap
}

func jsonLDStrategy(doc *goquery.Document) candidate {
	var found candidate
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if product := findProductNode(data); product != nil {
			found = readProductNode(product)
			return !found.complete()
		}
		return true
	})
	return found
}

// findProductNode walks arrays and @graph containers for a Product object.
func findProductNode(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if p := findProductNode(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProductNode(graph)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func readProductNode(node map[string]any) candidate {
	c := candidate{
		name:      cleanText(jsonString(node["name"])),
		thumbnail: jsonImage(node["image"]),
	}

	offers := node["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	if offer, ok := offers.(map[string]any); ok {
		c.price = firstValidPrice(jsonString(offer["price"]), jsonString(offer["lowPrice"]))
		c.status = schemaAvailability(jsonString(offer["availability"]))
	}
	return c
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func jsonImage(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return jsonImage(t[0])
		}
	case map[string]any:
		return jsonString(t["url"])
	}
	return ""
}

// schemaAvailability maps schema.org ItemAvailability values. Unknown or
// missing values return "" so the DOM classifier decides.
func schemaAvailability(v string) domain.Status {
	v = strings.ToLower(v)
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	switch v {
	case "outofstock", "soldout", "backorder":
		return domain.StatusOutOfStock
	case "discontinued":
		return domain.StatusDiscontinued
	case "instock", "limitedavailability", "onlineonly", "instoreonly", "preorder", "presale":
		return domain.StatusAvailable
	}
	return ""
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func metaStrategy(doc *goquery.Document) candidate {
	price := metaContent(doc,
		`meta[property="product:price:amount"]`,
		`meta[property="og:price:amount"]`,
		`meta[name="price"]`,
	)
	availability := metaContent(doc, `meta[property="product:availability"]`, `meta[property="og:availability"]`)

	return candidate{
		name:      cleanText(metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`, `meta[name="title"]`)),
		price:     firstValidPrice(price),
		thumbnail: metaContent(doc, `meta[property="og:image"]`, `meta[name="twitter:image"]`),
		status:    schemaAvailability(availability),
	}
}

func microdataStrategy(doc *goquery.Document) candidate {
	scope := doc.Find(`[itemtype*="schema.org/Product"]`).First()
	if scope.Length() == 0 {
		return candidate{}
	}

	prop := func(name string) *goquery.Selection {
		return scope.Find(`[itemprop="` + name + `"]`).First()
	}

	c := candidate{
		name:  cleanText(selectionValue(prop("name"))),
		price: firstValidPrice(selectionValue(prop("price")), selectionValue(prop("lowPrice"))),
	}

	img := prop("image")
	for _, attr := range []string{"content", "src", "href"} {
		if v, ok := img.Attr(attr); ok && v != "" {
			c.thumbnail = v
			break
		}
	}

	avail := prop("availability")
	for _, attr := range []string{"href", "content"} {
		if v, ok := avail.Attr(attr); ok && v != "" {
			c.status = schemaAvailability(v)
			break
		}
	}
	return c
}

func cssStrategy(doc *goquery.Document) candidate {
	return candidate{
		name:      firstText(doc, cssNameSelectors),
		price:     firstValidPrice(values(doc, cssPriceSelectors)...),
		thumbnail: firstImage(doc, cssImageSelectors),
	}
}

func regexStrategy(doc *goquery.Document) candidate {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()

	return candidate{
		name:  pageTitle(doc),
		price: firstValidPrice(scanPrices(body.Text())...),
	}
}

// pageTitle returns the <title> text without a trailing " | Site" or " - Site".
func pageTitle(doc *goquery.Document) string {
	title := cleanText(doc.Find("title").First().Text())
	for _, sep := range []string{" | ", " - ", " : "} {
		if i := strings.LastIndex(title, sep); i > 0 {
			title = title[:i]
		}
	}
	return title
}
