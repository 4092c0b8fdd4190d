// Package fetcher retrieves product page HTML and turns it into snapshots.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// ErrEmptyBody is returned when a transport answers without content.
var ErrEmptyBody = errors.New("empty response body")

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Mode() domain.FetchMode
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError reports that every attempted transport failed for a URL.
type FetchError struct {
	URL      string
	Attempts []Attempt
}

// Attempt is one transport try.
type Attempt struct {
	Mode domain.FetchMode
	Err  error
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Mode, a.Err))
	}
	return fmt.Sprintf("fetch %s failed (%s)", e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt error to errors.Is and errors.As.
func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
