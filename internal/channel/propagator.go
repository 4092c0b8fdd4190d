package channel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// DefaultCallTimeout bounds a single channel update.
const DefaultCallTimeout = 30 * time.Second

// Result is the outcome for one linked channel.
type Result struct {
	ChannelID    string `json:"channel_id"`
	ExternalCode string `json:"external_code"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ExternalID   string `json:"external_id,omitempty"`
	Err          error  `json:"-"`
}

// Propagation aggregates the per-channel results of one Propagate call.
type Propagation struct {
	Results           []Result `json:"results"`
	AnyChannelUpdated bool     `json:"any_channel_updated"`
}

// Failed returns the results that did not succeed.
func (p Propagation) Failed() []Result {
	var failed []Result
	for _, r := range p.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// Propagator fans changes out to every channel a product is linked to.
// Channels are independent: a failure is recorded and the next channel is
// still called. There is no retry or rollback here.
type Propagator struct {
	client      Client
	credentials map[string]Credentials
	timeout     time.Duration
	logger      infralogger.Logger
	tracer      trace.Tracer
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Propagator) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPropagator creates a Propagator.
func NewPropagator(client Client, credentials map[string]Credentials, log infralogger.Logger, opts ...Option) *Propagator {
	if log == nil {
		log = infralogger.NewNop()
	}
	p := &Propagator{
		client:      client,
		credentials: credentials,
		timeout:     DefaultCallTimeout,
		logger:      log,
		tracer:      otel.Tracer("pricewatch/channel"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Propagate pushes changes to each linked channel in channel id order.
func (p *Propagator) Propagate(ctx context.Context, product *domain.Product, changes Changes) Propagation {
	ids := product.ChannelCodes.IDs()
	out := Propagation{Results: make([]Result, 0, len(ids))}

	for _, id := range ids {
		r := p.updateOne(ctx, product.ID, id, product.ChannelCodes[id], changes)
		if r.Success {
			out.AnyChannelUpdated = true
		}
		out.Results = append(out.Results, r)
	}

	return out
}

func (p *Propagator) updateOne(ctx context.Context, productID int64, channelID, code string, changes Changes) Result {
	result := Result{ChannelID: channelID, ExternalCode: code}

	ctx, span := p.tracer.Start(ctx, "channel.update",
		trace.WithAttributes(
			attribute.Int64("product_id", productID),
			attribute.String("channel_id", channelID),
			attribute.String("external_code", code),
		),
	)
	defer span.End()

	creds, ok := p.credentials[channelID]
	if !ok {
		return p.fail(span, result, productID, ErrMissingCredentials)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Update(callCtx, creds, UpdateRequest{
		ChannelID:    channelID,
		ExternalCode: code,
		Changes:      changes,
	})
	if err == nil && !resp.Success {
		err = errors.New(resp.Message)
		if resp.Message == "" {
			err = errors.New("channel rejected update")
		}
	}
	if err != nil {
		return p.fail(span, result, productID, err)
	}

	result.Success = true
	result.Message = resp.Message
	result.ExternalID = resp.ExternalID
	span.SetStatus(codes.Ok, "")
	return result
}

func (p *Propagator) fail(span trace.Span, result Result, productID int64, err error) Result {
	pErr := &PropagationError{ChannelID: result.ChannelID, Err: err}

	span.RecordError(pErr)
	span.SetStatus(codes.Error, err.Error())

	p.logger.Warn("Channel update failed",
		infralogger.Int64("product_id", productID),
		infralogger.String("channel_id", result.ChannelID),
		infralogger.String("external_code", result.ExternalCode),
		infralogger.Error(err),
	)

	result.Success = false
	result.Message = err.Error()
	result.Err = pErr
	return result
}
