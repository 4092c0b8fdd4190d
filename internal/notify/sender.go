package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	infrahttp "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/http"
)

// StatusError is returned for a non-2xx destination response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("destination returned status %d", e.StatusCode)
}

// Sender performs one delivery attempt and returns the HTTP status code, or
// zero when no response was received.
type Sender interface {
	Send(ctx context.Context, dest Destination, body []byte) (int, error)
}

// HTTPSender posts JSON bodies.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender builds an HTTPSender on the shared transport settings.
func NewHTTPSender(cfg *infrahttp.ClientConfig) *HTTPSender {
	return &HTTPSender{client: infrahttp.NewClient(cfg)}
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, dest Destination, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range dest.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}
