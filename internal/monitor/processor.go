// Package monitor runs the periodic price monitoring cycle.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/channel"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/extractor"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/pricing"
)

// Outcome summarizes what processing did to one product.
type Outcome string

const (
	OutcomeFetchFailed      Outcome = "fetch_failed"
	OutcomePartial          Outcome = "partial"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeSourcingRecorded Outcome = "sourcing_recorded"
	OutcomeAdjusted         Outcome = "adjusted"
	OutcomeConflict         Outcome = "version_conflict"
	OutcomeInactive         Outcome = "inactive"
	OutcomeError            Outcome = "error"
)

// PageMonitor reads a snapshot from a product page.
type PageMonitor interface {
	Run(ctx context.Context, url string, source domain.Source) domain.Snapshot
}

// CheckRecorder stores the result of a check. A nil status keeps the last
// known status.
type CheckRecorder interface {
	MarkChecked(ctx context.Context, productID int64, status *domain.Status, at time.Time) error
}

// PriceApplier applies an observed sourcing price.
type PriceApplier interface {
	Apply(ctx context.Context, productID int64, sourcing decimal.Decimal) (*pricing.Result, error)
}

// MarginChecker grades and records margins after a sourcing change.
type MarginChecker interface {
	Check(ctx context.Context, product *domain.Product, sourcing decimal.Decimal) (*domain.MarginEvent, error)
}

// ChannelPropagator pushes product changes to sales channels.
type ChannelPropagator interface {
	Propagate(ctx context.Context, product *domain.Product, changes channel.Changes) channel.Propagation
}

// Notifier delivers an event synchronously.
type Notifier interface {
	Notify(ctx context.Context, event domain.EventType, payload domain.Payload) bool
}

// Processor runs the per-product pipeline: fetch, failure accounting,
// status transitions, pricing, margin guard and channel propagation.
type Processor struct {
	monitor    PageMonitor
	checks     CheckRecorder
	engine     PriceApplier
	guard      MarginChecker
	propagator ChannelPropagator
	notifier   Notifier
	failures   FailureCounter
	threshold  int
	metrics    *Metrics
	logger     infralogger.Logger
	now        func() time.Time
}

// ProcessorDeps are the collaborators of a Processor.
type ProcessorDeps struct {
	Monitor          PageMonitor
	Checks           CheckRecorder
	Engine           PriceApplier
	Guard            MarginChecker
	Propagator       ChannelPropagator
	Notifier         Notifier
	Failures         FailureCounter
	FailureThreshold int
	Metrics          *Metrics
	Logger           infralogger.Logger
}

// NewProcessor creates a Processor. A nil failure counter uses process memory.
func NewProcessor(deps ProcessorDeps) *Processor {
	p := &Processor{
		monitor:    deps.Monitor,
		checks:     deps.Checks,
		engine:     deps.Engine,
		guard:      deps.Guard,
		propagator: deps.Propagator,
		notifier:   deps.Notifier,
		failures:   deps.Failures,
		threshold:  deps.FailureThreshold,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
	if p.failures == nil {
		p.failures = NewMemoryFailureCounter()
	}
	if p.threshold <= 0 {
		p.threshold = DefaultFailureThreshold
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if p.logger == nil {
		p.logger = infralogger.NewNop()
	}
	return p
}

// Process handles one product. The returned error is set only for storage or
// pricing failures; fetch failures are an outcome, not an error.
func (p *Processor) Process(ctx context.Context, product domain.Product) (Outcome, error) {
	log := infralogger.FromContext(ctx, p.logger).With(
		infralogger.Int64("product_id", product.ID),
		infralogger.String("url", product.SourcingURL),
	)

	source := product.SourcingSource
	if source == "" {
		source = extractor.ResolveSource(product.SourcingURL)
	}

	snap := p.monitor.Run(ctx, product.SourcingURL, source)
	if snap.Failed() {
		p.recordFailure(ctx, log, &product, snap)
		return p.count(OutcomeFetchFailed), nil
	}

	if err := p.failures.Reset(ctx, product.ID); err != nil {
		log.Warn("Failed to reset failure count", infralogger.Error(err))
	}
	p.notifyTransition(ctx, &product, snap.Status)
	status := snap.Status
	p.markChecked(ctx, log, product.ID, &status)

	if !snap.Price.Valid {
		log.Info("Partial extraction, pricing skipped", infralogger.String("strategy", snap.Strategy))
		return p.count(OutcomePartial), nil
	}

	return p.applyPrice(ctx, log, product.ID, snap.Price.Decimal)
}

func (p *Processor) recordFailure(ctx context.Context, log infralogger.Logger, product *domain.Product, snap domain.Snapshot) {
	count, err := p.failures.Increment(ctx, product.ID)
	if err != nil {
		log.Warn("Failed to increment failure count", infralogger.Error(err))
	}

	log.Warn("Product check failed",
		infralogger.Int("consecutive_failures", count),
		infralogger.String("details", snap.Details),
		infralogger.Error(snap.Err),
	)

	if count == p.threshold {
		p.metrics.FetchFailureAlerts.Inc()
		payload := productPayload(product)
		payload["consecutive_failures"] = count
		payload["details"] = snap.Details
		if snap.Err != nil {
			payload["error"] = snap.Err.Error()
		}
		p.notifier.Notify(ctx, domain.EventPriceFetchFail, payload)
	}

	p.markChecked(ctx, log, product.ID, nil)
}

// notifyTransition raises inventory alerts when the status differs from the
// last known one. The first observation of a product raises nothing.
func (p *Processor) notifyTransition(ctx context.Context, product *domain.Product, next domain.Status) {
	if product.LastStatus == nil || *product.LastStatus == next {
		return
	}
	prev := *product.LastStatus

	var event domain.EventType
	switch {
	case next == domain.StatusOutOfStock:
		event = domain.EventInventoryOutOfStock
	case next == domain.StatusDiscontinued:
		event = domain.EventProductUnavailable
	case next == domain.StatusAvailable && (prev == domain.StatusOutOfStock || prev == domain.StatusDiscontinued):
		event = domain.EventInventoryRestock
	default:
		return
	}

	payload := productPayload(product)
	payload["previous_status"] = string(prev)
	payload["status"] = string(next)
	p.notifier.Notify(ctx, event, payload)
}

func (p *Processor) applyPrice(ctx context.Context, log infralogger.Logger, productID int64, sourcing decimal.Decimal) (Outcome, error) {
	result, err := p.engine.Apply(ctx, productID, sourcing)
	if errors.Is(err, pricing.ErrVersionConflict) {
		log.Info("Product changed concurrently, retrying next cycle")
		return p.count(OutcomeConflict), nil
	}
	if err != nil {
		log.Error("Pricing failed", infralogger.Error(err))
		return p.count(OutcomeError), err
	}

	if result.Inactive {
		log.Info("Product deactivated since it was listed, skipping pricing")
		return p.count(OutcomeInactive), nil
	}
	if !result.SourcingChanged {
		return p.count(OutcomeUnchanged), nil
	}

	p.notifier.Notify(ctx, domain.EventPriceChange, priceChangePayload(result, sourcing))

	event, err := p.guard.Check(ctx, &result.Before, sourcing)
	if err != nil {
		log.Error("Margin check failed", infralogger.Error(err))
	}
	if event != nil {
		p.metrics.MarginEvents.WithLabelValues(string(event.Kind)).Inc()
	}

	if !result.Changed {
		return p.count(OutcomeSourcingRecorded), nil
	}

	propagation := p.propagator.Propagate(ctx, &result.After, channel.PriceChange(result.After.SellingPrice))
	for _, r := range propagation.Results {
		p.metrics.ChannelUpdates.WithLabelValues(r.ChannelID, resultLabel(r.Success)).Inc()
	}
	p.notifier.Notify(ctx, domain.EventPriceAdjustment, adjustmentPayload(result, propagation))

	if result.Disabled {
		payload := productPayload(&result.After)
		payload["reason"] = string(domain.ReasonLowMarginDisable)
		payload["margin_rate"] = result.Record.NewMarginRate.StringFixed(2)
		p.notifier.Notify(ctx, domain.EventProductUnavailable, payload)
	}

	return p.count(OutcomeAdjusted), nil
}

func (p *Processor) markChecked(ctx context.Context, log infralogger.Logger, productID int64, status *domain.Status) {
	if err := p.checks.MarkChecked(ctx, productID, status, p.now().UTC()); err != nil {
		log.Error("Failed to record check", infralogger.Error(err))
	}
}

func (p *Processor) count(o Outcome) Outcome {
	p.metrics.ProductsProcessed.WithLabelValues(string(o)).Inc()
	return o
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func productPayload(product *domain.Product) domain.Payload {
	return domain.Payload{
		"product_id":   product.ID,
		"name":         product.Name,
		"sourcing_url": product.SourcingURL,
	}
}

func priceChangePayload(result *pricing.Result, sourcing decimal.Decimal) domain.Payload {
	payload := productPayload(&result.Before)
	if result.Before.SourcingPrice.Valid {
		payload["old_sourcing_price"] = result.Before.SourcingPrice.Decimal.String()
	} else {
		payload["old_sourcing_price"] = nil
	}
	payload["new_sourcing_price"] = sourcing.String()
	payload["selling_price"] = result.Before.SellingPrice.String()
	return payload
}

func adjustmentPayload(result *pricing.Result, propagation channel.Propagation) domain.Payload {
	payload := productPayload(&result.After)
	payload["old_selling_price"] = result.Record.OldSellingPrice.String()
	payload["new_selling_price"] = result.Record.NewSellingPrice.String()
	payload["new_margin_rate"] = result.Record.NewMarginRate.StringFixed(2)
	payload["reason"] = string(result.Record.Reason)
	payload["any_channel_updated"] = propagation.AnyChannelUpdated

	channels := make([]map[string]any, 0, len(propagation.Results))
	for _, r := range propagation.Results {
		channels = append(channels, map[string]any{
			"channel_id": r.ChannelID,
			"success":    r.Success,
			"message":    r.Message,
		})
	}
	payload["channels"] = channels
	return payload
}
