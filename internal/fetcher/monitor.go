package fetcher

import (
	"context"
	"errors"
	"time"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// FetchFailedDetails is the snapshot detail when no transport returned HTML.
const FetchFailedDetails = "HTML fetch failed"

// Extractor is the subset of the extractor registry MonitorRun needs.
type Extractor interface {
	RequiresBrowser(source domain.Source) bool
	Extract(html, sourceURL string, source domain.Source) domain.Snapshot
}

// timed is implemented by fetchers with their own per-call bound.
type timed interface {
	Timeout() time.Duration
}

// Monitor fetches a product page and extracts a snapshot. It has no storage
// side effects and never returns an error: failures become error snapshots.
type Monitor struct {
	direct    Fetcher
	browser   Fetcher
	extractor Extractor
	logger    infralogger.Logger
}

// NewMonitor creates a Monitor. browser may be nil when no browser proxy is
// configured; every source then uses direct fetching only.
func NewMonitor(direct, browser Fetcher, extractor Extractor, log infralogger.Logger) *Monitor {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Monitor{direct: direct, browser: browser, extractor: extractor, logger: log}
}

// Run fetches url with the transport preferred for source, falls back to the
// other transport exactly once, and extracts a snapshot from the HTML.
func (m *Monitor) Run(ctx context.Context, url string, source domain.Source) domain.Snapshot {
	primary, alternate := m.direct, m.browser
	if m.browser != nil && m.extractor.RequiresBrowser(source) {
		primary, alternate = m.browser, m.direct
	}

	html, mode, err := m.fetchWithFallback(ctx, url, primary, alternate)
	if err != nil {
		m.logger.Warn("HTML fetch failed",
			infralogger.String("url", url),
			infralogger.String("source", string(source)),
			infralogger.Error(err),
		)
		return domain.ErrorSnapshot(FetchFailedDetails, err)
	}

	snap := m.extractor.Extract(html, url, source)
	snap.Transport = mode
	return snap
}

func (m *Monitor) fetchWithFallback(ctx context.Context, url string, fetchers ...Fetcher) (string, domain.FetchMode, error) {
	fetchErr := &FetchError{URL: url}

	for _, f := range fetchers {
		if f == nil {
			continue
		}
		if ctx.Err() != nil {
			fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Mode: f.Mode(), Err: ctx.Err()})
			break
		}

		html, err := fetchOnce(ctx, f, url)
		if err == nil {
			return html, f.Mode(), nil
		}

		fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Mode: f.Mode(), Err: err})
		m.logger.Debug("Transport failed",
			infralogger.String("url", url),
			infralogger.String("mode", string(f.Mode())),
			infralogger.Error(err),
		)
	}

	if len(fetchErr.Attempts) == 0 {
		fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Err: errors.New("no transport configured")})
	}
	return "", "", fetchErr
}

func fetchOnce(ctx context.Context, f Fetcher, url string) (string, error) {
	if t, ok := f.(timed); ok && t.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout())
		defer cancel()
	}
	return f.Fetch(ctx, url)
}
