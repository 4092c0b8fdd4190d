package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// Evaluate grades a selling price against a new sourcing price. Tiers are
// checked in order and the first match wins, so at most one event results.
// A nil event means the margin is healthy. ProductID and CreatedAt are unset.
func Evaluate(th Thresholds, selling, sourcing decimal.Decimal) *domain.MarginEvent {
	if !sourcing.IsPositive() {
		return nil
	}

	margin := domain.Margin(selling, sourcing)
	rate := domain.MarginRate(selling, sourcing)

	event := &domain.MarginEvent{
		SellingPrice:  selling,
		SourcingPrice: sourcing,
		Margin:        margin,
		MarginRate:    rate.Round(2),
	}

	switch {
	case selling.LessThan(sourcing):
		event.Severity = domain.SeverityCritical
		event.Kind = domain.MarginReverse
		event.Amount = sourcing.Sub(selling)
	case rate.LessThan(th.MinMarginRate):
		event.Severity = domain.SeverityWarning
		event.Kind = domain.MarginLow
		event.Amount = domain.Markup(sourcing, th.MinMarginRate).Sub(selling)
	case rate.LessThan(th.RecommendedMarginRate):
		event.Severity = domain.SeverityInfo
		event.Kind = domain.MarginSuboptimal
		event.Amount = domain.Markup(sourcing, th.RecommendedMarginRate)
	default:
		return nil
	}

	return event
}

// MarginEventStore appends margin events.
type MarginEventStore interface {
	InsertMarginEvent(ctx context.Context, event *domain.MarginEvent) error
}

// AsyncNotifier delivers notifications off the calling goroutine.
type AsyncNotifier interface {
	NotifyAsync(event domain.EventType, payload domain.Payload)
}

// MarginGuard records adverse margin events and raises alerts for them.
type MarginGuard struct {
	thresholds Thresholds
	store      MarginEventStore
	notifier   AsyncNotifier
	logger     infralogger.Logger
	now        func() time.Time
}

// NewMarginGuard creates a MarginGuard. notifier may be nil.
func NewMarginGuard(th Thresholds, store MarginEventStore, notifier AsyncNotifier, log infralogger.Logger) *MarginGuard {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &MarginGuard{
		thresholds: th,
		store:      store,
		notifier:   notifier,
		logger:     log,
		now:        time.Now,
	}
}

// Thresholds returns the configured thresholds.
func (g *MarginGuard) Thresholds() Thresholds { return g.thresholds }

// Check evaluates the margin of a product after a sourcing price change. An
// adverse event is appended to the store and a margin_alert is sent
// asynchronously. Callers invoke Check once per detected sourcing change.
func (g *MarginGuard) Check(ctx context.Context, product *domain.Product, sourcing decimal.Decimal) (*domain.MarginEvent, error) {
	event := Evaluate(g.thresholds, product.SellingPrice, sourcing)
	if event == nil {
		return nil, nil
	}

	event.ProductID = product.ID
	event.CreatedAt = g.now().UTC()

	if err := g.store.InsertMarginEvent(ctx, event); err != nil {
		return event, fmt.Errorf("insert margin event: %w", err)
	}

	g.logger.Warn("Margin event detected",
		infralogger.Int64("product_id", product.ID),
		infralogger.String("kind", string(event.Kind)),
		infralogger.String("severity", string(event.Severity)),
		infralogger.Stringer("margin_rate", event.MarginRate),
		infralogger.Stringer("amount", event.Amount),
	)

	if g.notifier != nil {
		g.notifier.NotifyAsync(domain.EventMarginAlert, marginPayload(product, event))
	}

	return event, nil
}

func marginPayload(product *domain.Product, event *domain.MarginEvent) domain.Payload {
	return domain.Payload{
		"product_id":     product.ID,
		"product_name":   product.Name,
		"severity":       event.Severity,
		"kind":           event.Kind,
		"selling_price":  event.SellingPrice.String(),
		"sourcing_price": event.SourcingPrice.String(),
		"margin":         event.Margin.String(),
		"margin_rate":    event.MarginRate.String(),
		"amount":         event.Amount.String(),
	}
}
