package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	infrahttp "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/http"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

const (
	// DefaultBrowserTimeout bounds a browser-rendered fetch.
	DefaultBrowserTimeout = 60 * time.Second
	defaultWaitUntil      = "networkidle2"
	maxRenderedBodySize   = 20 * 1024 * 1024
)

// BrowserConfig configures the browser-automation proxy transport.
type BrowserConfig struct {
	// Endpoint accepts a render request and answers with the page HTML.
	Endpoint  string
	Token     string
	WaitUntil string
	Timeout   time.Duration
}

type renderRequest struct {
	URL       string `json:"url"`
	WaitUntil string `json:"wait_until"`
	TimeoutMS int64  `json:"timeout_ms"`
}

// BrowserFetcher asks a headless-browser proxy to render a page. The proxy
// owns the browser lifecycle.
type BrowserFetcher struct {
	cfg    BrowserConfig
	client *http.Client
}

// NewBrowserFetcher creates a browser fetcher.
func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	if cfg.WaitUntil == "" {
		cfg.WaitUntil = defaultWaitUntil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBrowserTimeout
	}

	return &BrowserFetcher{
		cfg: cfg,
		client: infrahttp.NewClient(&infrahttp.ClientConfig{
			Timeout:               cfg.Timeout,
			ResponseHeaderTimeout: cfg.Timeout,
		}),
	}
}

// Mode implements Fetcher.
func (f *BrowserFetcher) Mode() domain.FetchMode { return domain.FetchModeBrowser }

// Timeout is the bound applied to each fetch.
func (f *BrowserFetcher) Timeout() time.Duration { return f.cfg.Timeout }

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	payload, err := json.Marshal(renderRequest{
		URL:       url,
		WaitUntil: f.cfg.WaitUntil,
		TimeoutMS: f.cfg.Timeout.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/html")
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedBodySize))
	if err != nil {
		return "", fmt.Errorf("read rendered body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browser fetch: proxy returned status %d", resp.StatusCode)
	}

	html := string(body)
	if strings.TrimSpace(html) == "" {
		return "", ErrEmptyBody
	}
	return html, nil
}
