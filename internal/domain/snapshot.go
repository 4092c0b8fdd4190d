package domain

import "github.com/shopspring/decimal"

// Snapshot is one point-in-time reading of an upstream product page. It is
// consumed by the pipeline and never persisted as is.
type Snapshot struct {
	Status       Status
	Price        decimal.NullDecimal
	Name         *string
	ThumbnailURL *string
	Details      string
	// Strategy names the rule set or generic strategy that produced the result.
	Strategy string
	// Transport is the fetch mode that returned the HTML.
	Transport FetchMode
	// Err carries the typed failure when Status is StatusError.
	Err error
}

// Failed reports whether the snapshot counts as a fetch or extraction failure.
func (s Snapshot) Failed() bool {
	return s.Status == StatusError
}

// IsPartial reports a name-only extraction. No pricing decision may be made on it.
func (s Snapshot) IsPartial() bool {
	return !s.Failed() && s.Name != nil && !s.Price.Valid
}

// ErrorSnapshot builds a failed snapshot.
func ErrorSnapshot(details string, err error) Snapshot {
	return Snapshot{Status: StatusError, Details: details, Err: err}
}
