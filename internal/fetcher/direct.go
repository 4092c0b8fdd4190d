package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	infrahttp "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/http"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

const (
	// DefaultDirectTimeout bounds a direct fetch.
	DefaultDirectTimeout = 15 * time.Second
	// DefaultUserAgent is a desktop browser identity.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultMaxBodySize = 10 * 1024 * 1024
)

// DirectConfig configures the direct HTTP transport.
type DirectConfig struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodySize    int
}

// DirectFetcher downloads pages with plain HTTP and browser-like headers.
type DirectFetcher struct {
	cfg       DirectConfig
	transport http.RoundTripper
}

// NewDirectFetcher creates a direct fetcher. Zero config fields use defaults.
func NewDirectFetcher(cfg DirectConfig) *DirectFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDirectTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}

	return &DirectFetcher{
		cfg:       cfg,
		transport: infrahttp.NewTransport(&infrahttp.ClientConfig{ResponseHeaderTimeout: cfg.Timeout}),
	}
}

// Mode implements Fetcher.
func (f *DirectFetcher) Mode() domain.FetchMode { return domain.FetchModeDirect }

// Timeout is the bound applied to each fetch.
func (f *DirectFetcher) Timeout() time.Duration { return f.cfg.Timeout }

// Fetch implements Fetcher. Every call uses its own collector so the request
// is bound to ctx.
func (f *DirectFetcher) Fetch(ctx context.Context, url string) (string, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxBodySize(f.cfg.MaxBodySize),
		colly.DetectCharset(),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("direct fetch: %w", err)
	}

	html := string(body)
	if strings.TrimSpace(html) == "" {
		return "", ErrEmptyBody
	}
	return html, nil
}
