package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/channel"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

type mockClient struct {
	mu       sync.Mutex
	calls    []channel.UpdateRequest
	updateFn func(ctx context.Context, creds channel.Credentials, req channel.UpdateRequest) (channel.UpdateResponse, error)
}

func (m *mockClient) Update(ctx context.Context, creds channel.Credentials, req channel.UpdateRequest) (channel.UpdateResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.updateFn(ctx, creds, req)
}

var testCreds = map[string]channel.Credentials{
	"coupang":    {APIKey: "c-key"},
	"smartstore": {APIKey: "s-key"},
}

func linkedProduct(codes domain.ChannelCodes) *domain.Product {
	return &domain.Product{ID: 7, SellingPrice: decimal.NewFromInt(13000), ChannelCodes: codes}
}

func TestPropagate_OneChannelFails(t *testing.T) {
	t.Parallel()

	client := &mockClient{updateFn: func(_ context.Context, _ channel.Credentials, req channel.UpdateRequest) (channel.UpdateResponse, error) {
		if req.ChannelID == "coupang" {
			return channel.UpdateResponse{}, errors.New("503 service unavailable")
		}
		return channel.UpdateResponse{Success: true, Message: "ok", ExternalID: "N-1"}, nil
	}}
	p := channel.NewPropagator(client, testCreds, nil)

	out := p.Propagate(context.Background(), linkedProduct(domain.ChannelCodes{"smartstore": "S-7", "coupang": "C-7"}),
		channel.PriceChange(decimal.NewFromInt(13000)))

	assert.True(t, out.AnyChannelUpdated)
	require.Len(t, out.Results, 2)

	assert.Equal(t, "coupang", out.Results[0].ChannelID)
	assert.False(t, out.Results[0].Success)
	assert.Contains(t, out.Results[0].Message, "503")
	var pErr *channel.PropagationError
	require.ErrorAs(t, out.Results[0].Err, &pErr)
	assert.Equal(t, "coupang", pErr.ChannelID)

	assert.Equal(t, "smartstore", out.Results[1].ChannelID)
	assert.True(t, out.Results[1].Success)
	assert.Equal(t, "N-1", out.Results[1].ExternalID)

	assert.Len(t, out.Failed(), 1)
	assert.Len(t, client.calls, 2, "each channel is called exactly once")
}

func TestPropagate_NoLinkedChannels(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	out := channel.NewPropagator(client, testCreds, nil).
		Propagate(context.Background(), linkedProduct(nil), channel.PriceChange(decimal.NewFromInt(1)))

	assert.False(t, out.AnyChannelUpdated)
	assert.Empty(t, out.Results)
	assert.Empty(t, client.calls)
}

func TestPropagate_MissingCredentials(t *testing.T) {
	t.Parallel()

	client := &mockClient{updateFn: func(context.Context, channel.Credentials, channel.UpdateRequest) (channel.UpdateResponse, error) {
		return channel.UpdateResponse{Success: true}, nil
	}}
	out := channel.NewPropagator(client, testCreds, nil).
		Propagate(context.Background(), linkedProduct(domain.ChannelCodes{"11st": "E-1", "coupang": "C-7"}),
			channel.PriceChange(decimal.NewFromInt(13000)))

	require.Len(t, out.Results, 2)
	assert.False(t, out.Results[0].Success)
	require.ErrorIs(t, out.Results[0].Err, channel.ErrMissingCredentials)
	assert.True(t, out.Results[1].Success)
	assert.Len(t, client.calls, 1)
}

func TestPropagate_RejectedAndHungChannels(t *testing.T) {
	t.Parallel()

	client := &mockClient{updateFn: func(ctx context.Context, _ channel.Credentials, req channel.UpdateRequest) (channel.UpdateResponse, error) {
		if req.ChannelID == "coupang" {
			<-ctx.Done()
			return channel.UpdateResponse{}, ctx.Err()
		}
		return channel.UpdateResponse{Success: false, Message: "price below floor"}, nil
	}}
	p := channel.NewPropagator(client, testCreds, nil, channel.WithCallTimeout(20*time.Millisecond))

	out := p.Propagate(context.Background(), linkedProduct(domain.ChannelCodes{"smartstore": "S-7", "coupang": "C-7"}),
		channel.PriceChange(decimal.NewFromInt(13000)))

	assert.False(t, out.AnyChannelUpdated)
	require.Len(t, out.Results, 2)
	require.ErrorIs(t, out.Results[0].Err, context.DeadlineExceeded)
	assert.Equal(t, "price below floor", out.Results[1].Message)
}

func TestChanges_Fields(t *testing.T) {
	t.Parallel()

	name := "Kettle"
	c := channel.PriceChange(decimal.NewFromInt(100))
	c.Name = &name
	assert.Equal(t, []channel.Field{channel.FieldName, channel.FieldPrice}, c.Fields())
	assert.Empty(t, channel.Changes{}.Fields())
}

func TestPlatformClient_Update(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/channels/smartstore/products/S-7", r.URL.Path)
		assert.Equal(t, "s-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 13000, body["sale_price"], 0)
		assert.NotContains(t, body, "name")

		_, _ = w.Write([]byte(`{"success":true,"message":"updated","product_no":"N-1"}`))
	}))
	t.Cleanup(srv.Close)

	c := channel.NewPlatformClient(srv.URL+"/", time.Second)
	resp, err := c.Update(context.Background(), testCreds["smartstore"], channel.UpdateRequest{
		ChannelID:    "smartstore",
		ExternalCode: "S-7",
		Changes:      channel.PriceChange(decimal.NewFromInt(13000)),
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "N-1", resp.ExternalID)
}

func TestPlatformClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid price"}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := channel.NewPlatformClient(srv.URL, time.Second).Update(context.Background(), testCreds["coupang"],
		channel.UpdateRequest{ChannelID: "coupang", ExternalCode: "C-7", Changes: channel.PriceChange(decimal.NewFromInt(1))})

	require.Error(t, err)
	assert.Equal(t, "invalid price", resp.Message)
}
