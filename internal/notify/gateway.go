package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialDelay   = time.Second
	defaultMultiplier     = 2.0
	defaultAttemptTimeout = 30 * time.Second
)

// ErrGatewayClosed is returned by Close when called twice.
var ErrGatewayClosed = errors.New("notification gateway closed")

// DeliveryError is the final failure of one destination for one event.
type DeliveryError struct {
	Destination string
	Event       domain.EventType
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Event, e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DeliveryLogStore persists delivery attempts.
type DeliveryLogStore interface {
	InsertDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error
}

// Config holds gateway settings. Zero values use the defaults.
type Config struct {
	Destinations   []Destination
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration
}

// Gateway fans events out to every subscribed destination.
type Gateway struct {
	destinations   []Destination
	sender         Sender
	logs           DeliveryLogStore
	retry          retry.Config
	attemptTimeout time.Duration
	logger         infralogger.Logger
	tracer         trace.Tracer
	now            func() time.Time

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewGateway creates a Gateway. logs may be nil.
func NewGateway(cfg Config, sender Sender, logs DeliveryLogStore, log infralogger.Logger) *Gateway {
	if log == nil {
		log = infralogger.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaultMultiplier
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}

	return &Gateway{
		destinations: cfg.Destinations,
		sender:       sender,
		logs:         logs,
		retry: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			IsRetryable:  retry.Always,
		},
		attemptTimeout: cfg.AttemptTimeout,
		logger:         log,
		tracer:         otel.Tracer("pricewatch/notify"),
		now:            time.Now,
	}
}

// Notify delivers event to each subscribed destination and reports whether
// at least one accepted it. Failures are logged, never returned.
func (g *Gateway) Notify(ctx context.Context, event domain.EventType, payload domain.Payload) bool {
	delivered := false
	for _, dest := range g.destinations {
		if !dest.Subscribes(event) {
			continue
		}
		if err := g.deliver(ctx, dest, event, payload); err != nil {
			g.logger.Warn("Notification delivery failed",
				infralogger.String("destination", dest.Name),
				infralogger.String("event", string(event)),
				infralogger.Error(err),
			)
			continue
		}
		delivered = true
	}
	return delivered
}

// NotifyAsync runs Notify in the background on a context detached from any
// caller. Events sent after Close are dropped.
func (g *Gateway) NotifyAsync(event domain.EventType, payload domain.Payload) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Warn("Notification dropped after close", infralogger.String("event", string(event)))
		return
	}
	g.pending.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.pending.Done()
		g.Notify(context.Background(), event, payload)
	}()
}

// Close stops accepting async events and waits for pending deliveries until
// ctx ends.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGatewayClosed
	}
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for pending notifications: %w", ctx.Err())
	}
}

func (g *Gateway) deliver(ctx context.Context, dest Destination, event domain.EventType, payload domain.Payload) error {
	ctx, span := g.tracer.Start(ctx, "notify.deliver",
		trace.WithAttributes(
			attribute.String("destination", dest.Name),
			attribute.String("kind", string(dest.Kind)),
			attribute.String("event", string(event)),
		),
	)
	defer span.End()

	body, err := dest.Body(event, payload, g.now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &DeliveryError{Destination: dest.Name, Event: event, Err: err}
	}

	var status int
	cfg := g.retry
	cfg.OnAttempt = func(attempt int, err error) {
		g.recordAttempt(ctx, dest, event, attempt, status, err)
	}

	err = retry.Retry(ctx, cfg, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()

		var sendErr error
		status, sendErr = g.sender.Send(attemptCtx, dest, body)
		return sendErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &DeliveryError{Destination: dest.Name, Event: event, Err: err}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (g *Gateway) recordAttempt(ctx context.Context, dest Destination, event domain.EventType, attempt, status int, err error) {
	if g.logs == nil {
		return
	}

	entry := &domain.DeliveryLog{
		Destination: dest.Name,
		EventType:   event,
		Attempt:     attempt,
		Success:     err == nil,
		StatusCode:  status,
		CreatedAt:   g.now().UTC(),
	}
	if err != nil {
		msg := err.Error()
		entry.Error = &msg
	}

	if logErr := g.logs.InsertDeliveryLog(context.WithoutCancel(ctx), entry); logErr != nil {
		g.logger.Error("Failed to write delivery log",
			infralogger.String("destination", dest.Name),
			infralogger.Int("attempt", attempt),
			infralogger.Error(logErr),
		)
	}
}
