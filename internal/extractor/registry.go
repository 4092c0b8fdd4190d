package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// Registry dispatches extraction by product source.
type Registry struct {
	extractors map[domain.Source]Extractor
	rules      map[domain.Source]RetailerRules
	generic    *GenericExtractor
}

// NewRegistry returns a registry with every default retailer registered.
func NewRegistry(classifier *StatusClassifier) *Registry {
	if classifier == nil {
		classifier = NewStatusClassifier()
	}

	r := &Registry{
		extractors: make(map[domain.Source]Extractor),
		rules:      make(map[domain.Source]RetailerRules),
		generic:    NewGenericExtractor(classifier),
	}

	for _, rules := range DefaultRetailers {
		r.RegisterRules(rules, classifier)
	}
	return r
}

// RegisterRules adds or replaces a rule-driven retailer extractor.
func (r *Registry) RegisterRules(rules RetailerRules, classifier *StatusClassifier) {
	r.rules[rules.Source] = rules
	r.extractors[rules.Source] = NewRetailerExtractor(rules, classifier, r.generic)
}

// Register adds or replaces a custom extractor.
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Source()] = e
}

// RequiresBrowser reports whether source pages need script execution.
func (r *Registry) RequiresBrowser(source domain.Source) bool {
	return r.rules[source].RequiresBrowser
}

// Extract parses html and runs the extractor registered for source, or the
// generic extractor when none is.
func (r *Registry) Extract(html, sourceURL string, source domain.Source) domain.Snapshot {
	if strings.TrimSpace(html) == "" {
		return domain.ErrorSnapshot(ErrEmptyDocument.Error(), ErrEmptyDocument)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return domain.ErrorSnapshot("parse html: "+err.Error(), err)
	}

	pageURL, _ := url.Parse(sourceURL)

	var ext Extractor = r.generic
	if e, ok := r.extractors[source]; ok {
		ext = e
	}
	return ext.Extract(doc, pageURL)
}

// ResolveSource maps a product URL to its retailer. Call it once when a product
// is registered; unknown hosts resolve to SourceGeneric.
func ResolveSource(rawURL string) domain.Source {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return domain.SourceGeneric
	}

	host := strings.ToLower(u.Hostname())
	for _, rules := range DefaultRetailers {
		for _, h := range rules.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return rules.Source
			}
		}
	}
	return domain.SourceGeneric
}
