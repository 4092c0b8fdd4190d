package extractor

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// Default stock-out vocabulary.
var (
	DefaultOutOfStockKeywords   = []string{"품절", "일시품절", "sold out"}
	DefaultDiscontinuedKeywords = []string{"판매종료", "판매중지", "단종"}
)

// SanePriceThreshold is the price above which a clean purchase area forces
// the available status.
var SanePriceThreshold = decimal.NewFromInt(1000)

// StatusClassifier maps page signals to an availability state.
type StatusClassifier struct {
	mu              sync.Mutex
	matcher         *ahocorasick.Matcher
	outOfStockCount int
}

// NewStatusClassifier builds a classifier over the default vocabulary.
func NewStatusClassifier() *StatusClassifier {
	return NewStatusClassifierWithKeywords(DefaultOutOfStockKeywords, DefaultDiscontinuedKeywords)
}

// NewStatusClassifierWithKeywords builds a classifier over custom vocabularies.
func NewStatusClassifierWithKeywords(outOfStock, discontinued []string) *StatusClassifier {
	keywords := make([]string, 0, len(outOfStock)+len(discontinued))
	for _, kw := range outOfStock {
		keywords = append(keywords, normalizeText(kw))
	}
	for _, kw := range discontinued {
		keywords = append(keywords, normalizeText(kw))
	}

	return &StatusClassifier{
		matcher:         ahocorasick.NewStringMatcher(keywords),
		outOfStockCount: len(outOfStock),
	}
}

// KeywordStatus classifies free text. Discontinued wins over out of stock when
// both vocabularies match. Text without keywords is available.
func (c *StatusClassifier) KeywordStatus(text string) domain.Status {
	normalized := normalizeText(text)
	if normalized == "" {
		return domain.StatusAvailable
	}

	c.mu.Lock()
	hits := c.matcher.Match([]byte(normalized))
	c.mu.Unlock()

	status := domain.StatusAvailable
	for _, idx := range hits {
		if idx >= c.outOfStockCount {
			return domain.StatusDiscontinued
		}
		status = domain.StatusOutOfStock
	}
	return status
}

// Classify inspects the purchase-action region selected by buyAreaSelectors
// first; a stock-out keyword there decides the status. Otherwise a sane price
// forces available, so stock-out words in unrelated widgets are ignored.
// Without a sane price the whole page body is scanned.
func (c *StatusClassifier) Classify(doc *goquery.Document, buyAreaSelectors []string, price decimal.NullDecimal) domain.Status {
	if buyArea, found := purchaseAreaText(doc, buyAreaSelectors); found {
		if status := c.KeywordStatus(buyArea); status != domain.StatusAvailable {
			return status
		}
	}

	if price.Valid && price.Decimal.GreaterThan(SanePriceThreshold) {
		return domain.StatusAvailable
	}

	return c.KeywordStatus(doc.Find("body").Text())
}

func purchaseAreaText(doc *goquery.Document, selectors []string) (string, bool) {
	for _, sel := range selectors {
		node := doc.Find(sel)
		if node.Length() == 0 {
			continue
		}

		var b strings.Builder
		b.WriteString(node.Text())
		// Disabled buttons often carry their label only in attributes.
		node.Find("*").AddSelection(node).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range []string{"value", "title", "aria-label", "alt"} {
				if v, ok := s.Attr(attr); ok {
					b.WriteByte(' ')
					b.WriteString(v)
				}
			}
		})
		return b.String(), true
	}
	return "", false
}
