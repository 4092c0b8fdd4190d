package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	infrahttp "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/http"
)

const maxResponseSize = 1 << 20

// PlatformClient talks to the multi-channel seller platform's REST API.
type PlatformClient struct {
	baseURL string
	client  *http.Client
}

// NewPlatformClient creates a client for the platform at baseURL.
func NewPlatformClient(baseURL string, timeout time.Duration) *PlatformClient {
	return &PlatformClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: timeout}),
	}
}

type updateBody struct {
	Name         *string  `json:"name,omitempty"`
	SalePrice    *float64 `json:"sale_price,omitempty"`
	ImageURL     *string  `json:"image_url,omitempty"`
	CategoryCode *string  `json:"category_code,omitempty"`
}

type updateReply struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ProductNo string `json:"product_no"`
}

// Update implements Client with PUT /channels/{id}/products/{code}.
func (c *PlatformClient) Update(ctx context.Context, creds Credentials, req UpdateRequest) (UpdateResponse, error) {
	body := updateBody{
		Name:         req.Changes.Name,
		ImageURL:     req.Changes.ThumbnailURL,
		CategoryCode: req.Changes.CategoryCode,
	}
	if req.Changes.Price != nil {
		v := req.Changes.Price.InexactFloat64()
		body.SalePrice = &v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return UpdateResponse{}, fmt.Errorf("encode update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/channels/%s/products/%s",
		c.baseURL, url.PathEscape(req.ChannelID), url.PathEscape(req.ExternalCode))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return UpdateResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", creds.APIKey)
	if creds.APISecret != "" {
		httpReq.Header.Set("X-Api-Secret", creds.APISecret)
	}
	if creds.ShopID != "" {
		httpReq.Header.Set("X-Shop-Id", creds.ShopID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return UpdateResponse{}, fmt.Errorf("channel request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return UpdateResponse{}, fmt.Errorf("read channel response: %w", err)
	}

	var reply updateReply
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &reply); err != nil && resp.StatusCode < http.StatusBadRequest {
			return UpdateResponse{}, fmt.Errorf("decode channel response: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := reply.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return UpdateResponse{Message: msg}, fmt.Errorf("channel returned status %d: %s", resp.StatusCode, msg)
	}

	return UpdateResponse{Success: reply.Success, Message: reply.Message, ExternalID: reply.ProductNo}, nil
}
