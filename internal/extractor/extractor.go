// Package extractor turns product page HTML into a domain.Snapshot. Each known
// retailer has a rule table; anything else goes through the generic strategies.
package extractor

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

var (
	// ErrNoMatch is set on snapshots when no rule or strategy found a name.
	ErrNoMatch = errors.New("no extraction strategy matched")
	// ErrEmptyDocument is set on snapshots for empty or unparsable HTML.
	ErrEmptyDocument = errors.New("empty document")
	// ErrPartial describes a name-only extraction for callers that need an error.
	ErrPartial = errors.New("extraction partial: price not found")
)

// Extractor reads a parsed product page.
type Extractor interface {
	Source() domain.Source
	Extract(doc *goquery.Document, pageURL *url.URL) domain.Snapshot
}

// RetailerRules describes how to read one retailer's product page.
type RetailerRules struct {
	Source domain.Source
	// Hosts are matched as domain suffixes by ResolveSource.
	Hosts []string
	// RequiresBrowser routes fetches through the browser-automation transport.
	RequiresBrowser    bool
	NameSelectors      []string
	PriceSelectors     []string
	ThumbnailSelectors []string
	// BuyAreaSelectors locate the purchase-action block (buy and cart buttons).
	BuyAreaSelectors []string
}

type retailerExtractor struct {
	rules      RetailerRules
	classifier *StatusClassifier
	fallback   *GenericExtractor
}

// NewRetailerExtractor builds a rule-driven extractor. When the rules find no
// name, typically after a page redesign, extraction falls back to generic.
func NewRetailerExtractor(rules RetailerRules, classifier *StatusClassifier, fallback *GenericExtractor) Extractor {
	return &retailerExtractor{rules: rules, classifier: classifier, fallback: fallback}
}

func (e *retailerExtractor) Source() domain.Source { return e.rules.Source }

func (e *retailerExtractor) Extract(doc *goquery.Document, pageURL *url.URL) domain.Snapshot {
	name := firstText(doc, e.rules.NameSelectors)
	if name == "" {
		snap := e.fallback.Extract(doc, pageURL)
		if !snap.Failed() {
			snap.Strategy = string(e.rules.Source) + "+" + snap.Strategy
		}
		return snap
	}

	price := firstValidPrice(values(doc, e.rules.PriceSelectors)...)

	snap := domain.Snapshot{
		Name:         strPtr(name),
		Price:        price,
		ThumbnailURL: ResolveURL(pageURL, firstImage(doc, e.rules.ThumbnailSelectors)),
		Status:       e.classifier.Classify(doc, e.rules.BuyAreaSelectors, price),
		Strategy:     string(e.rules.Source),
	}
	snap.Details = describe(snap)
	return snap
}

func describe(s domain.Snapshot) string {
	if s.IsPartial() {
		return ErrPartial.Error()
	}
	return "extracted via " + s.Strategy
}

// firstText returns the cleaned text of the first selector that yields any.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := cleanText(selectionValue(doc.Find(sel).First())); text != "" {
			return text
		}
	}
	return ""
}

// values returns the value of every element matched by selectors, in order.
func values(doc *goquery.Document, selectors []string) []string {
	var out []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if v := strings.TrimSpace(selectionValue(s)); v != "" {
				out = append(out, v)
			}
		})
	}
	return out
}

// selectionValue prefers machine-readable attributes over display text.
func selectionValue(s *goquery.Selection) string {
	for _, attr := range []string{"content", "data-price", "value"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return s.Text()
}

func firstImage(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		for _, attr := range []string{"content", "data-src", "data-original", "src", "href"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}
