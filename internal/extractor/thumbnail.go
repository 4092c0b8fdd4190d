package extractor

import (
	"net/url"
	"strings"
)

// ResolveURL resolves protocol-relative and root-relative references against
// the page URL. Empty references resolve to nil.
func ResolveURL(pageURL *url.URL, ref string) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return nil
	}

	if pageURL == nil {
		return &ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}

	resolved := pageURL.ResolveReference(u).String()
	return &resolved
}
