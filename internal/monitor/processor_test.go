package monitor //nolint:testpackage // Testing internal processor requires same package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/channel"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/pricing"
)

type fakeMonitor struct {
	mu    sync.Mutex
	calls int
	runFn func(url string, source domain.Source) domain.Snapshot
}

func (m *fakeMonitor) Run(_ context.Context, url string, source domain.Source) domain.Snapshot {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.runFn(url, source)
}

type checkCall struct {
	productID int64
	status    *domain.Status
}

type fakeChecks struct {
	mu    sync.Mutex
	calls []checkCall
}

func (c *fakeChecks) MarkChecked(_ context.Context, productID int64, status *domain.Status, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, checkCall{productID: productID, status: status})
	return nil
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   int
	applyFn func(productID int64, sourcing decimal.Decimal) (*pricing.Result, error)
}

func (e *fakeEngine) Apply(_ context.Context, productID int64, sourcing decimal.Decimal) (*pricing.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.applyFn(productID, sourcing)
}

type guardCall struct {
	selling  decimal.Decimal
	sourcing decimal.Decimal
}

type fakeGuard struct {
	calls []guardCall
	event *domain.MarginEvent
}

func (g *fakeGuard) Check(_ context.Context, product *domain.Product, sourcing decimal.Decimal) (*domain.MarginEvent, error) {
	g.calls = append(g.calls, guardCall{selling: product.SellingPrice, sourcing: sourcing})
	return g.event, nil
}

type fakePropagator struct {
	calls   []channel.Changes
	results []channel.Result
}

func (p *fakePropagator) Propagate(_ context.Context, _ *domain.Product, changes channel.Changes) channel.Propagation {
	p.calls = append(p.calls, changes)
	out := channel.Propagation{Results: p.results}
	for _, r := range p.results {
		out.AnyChannelUpdated = out.AnyChannelUpdated || r.Success
	}
	return out
}

type sentEvent struct {
	event   domain.EventType
	payload domain.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.EventType, payload domain.Payload) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{event: event, payload: payload})
	return true
}

func (n *recordingNotifier) count(event domain.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.event)
	}
	return out
}

type harness struct {
	monitor    *fakeMonitor
	checks     *fakeChecks
	engine     *fakeEngine
	guard      *fakeGuard
	propagator *fakePropagator
	notifier   *recordingNotifier
	metrics    *Metrics
	processor  *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		monitor: &fakeMonitor{runFn: func(string, domain.Source) domain.Snapshot {
			return availableSnapshot(10000)
		}},
		checks: &fakeChecks{},
		engine: &fakeEngine{applyFn: func(int64, decimal.Decimal) (*pricing.Result, error) {
			return &pricing.Result{}, nil
		}},
		guard:      &fakeGuard{},
		propagator: &fakePropagator{},
		notifier:   &recordingNotifier{},
		metrics:    NewMetrics(prometheus.NewRegistry()),
	}
	h.processor = NewProcessor(ProcessorDeps{
		Monitor:    h.monitor,
		Checks:     h.checks,
		Engine:     h.engine,
		Guard:      h.guard,
		Propagator: h.propagator,
		Notifier:   h.notifier,
		Metrics:    h.metrics,
	})
	return h
}

func availableSnapshot(price int64) domain.Snapshot {
	return domain.Snapshot{
		Status: domain.StatusAvailable,
		Price:  decimal.NewNullDecimal(decimal.NewFromInt(price)),
	}
}

func statusPtr(s domain.Status) *domain.Status { return &s }

func testProduct() domain.Product {
	return domain.Product{
		ID:             7,
		Name:           "Kettle",
		SourcingURL:    "https://www.ssg.com/item/itemView.ssg?itemId=1",
		SourcingSource: domain.SourceSSG,
		SellingPrice:   decimal.NewFromInt(12000),
		LastStatus:     statusPtr(domain.StatusAvailable),
	}
}

func TestProcess_FailureThresholdAlertsOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		return domain.ErrorSnapshot("HTML fetch failed", errors.New("timeout"))
	}
	product := testProduct()

	for i := 1; i < DefaultFailureThreshold; i++ {
		outcome, err := h.processor.Process(context.Background(), product)
		require.NoError(t, err)
		require.Equal(t, OutcomeFetchFailed, outcome)
	}
	assert.Zero(t, h.notifier.count(domain.EventPriceFetchFail))

	_, err := h.processor.Process(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, 1, h.notifier.count(domain.EventPriceFetchFail), "alert on the 20th failure")

	_, err = h.processor.Process(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, 1, h.notifier.count(domain.EventPriceFetchFail), "no alert on the 21st failure")

	assert.Zero(t, h.engine.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.FetchFailureAlerts), 0)

	require.Len(t, h.checks.calls, DefaultFailureThreshold+1)
	assert.Nil(t, h.checks.calls[0].status, "failures keep the last known status")
}

func TestProcess_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	fail := true
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		if fail {
			return domain.ErrorSnapshot("HTML fetch failed", errors.New("timeout"))
		}
		return availableSnapshot(10000)
	}
	product := testProduct()

	for range DefaultFailureThreshold - 1 {
		_, _ = h.processor.Process(context.Background(), product)
	}
	fail = false
	_, err := h.processor.Process(context.Background(), product)
	require.NoError(t, err)

	fail = true
	for range DefaultFailureThreshold - 1 {
		_, _ = h.processor.Process(context.Background(), product)
	}
	assert.Zero(t, h.notifier.count(domain.EventPriceFetchFail))
}

func TestProcess_PartialSnapshotSkipsPricing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	name := "Kettle"
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		return domain.Snapshot{Status: domain.StatusAvailable, Name: &name}
	}

	outcome, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, outcome)
	assert.Zero(t, h.engine.calls)
	require.Len(t, h.checks.calls, 1)
	assert.Equal(t, domain.StatusAvailable, *h.checks.calls[0].status)
}

func TestProcess_StatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prev *domain.Status
		next domain.Status
		want []domain.EventType
	}{
		{"first observation", nil, domain.StatusOutOfStock, nil},
		{"unchanged", statusPtr(domain.StatusAvailable), domain.StatusAvailable, nil},
		{"sold out", statusPtr(domain.StatusAvailable), domain.StatusOutOfStock, []domain.EventType{domain.EventInventoryOutOfStock}},
		{"restock", statusPtr(domain.StatusOutOfStock), domain.StatusAvailable, []domain.EventType{domain.EventInventoryRestock}},
		{"back from discontinued", statusPtr(domain.StatusDiscontinued), domain.StatusAvailable, []domain.EventType{domain.EventInventoryRestock}},
		{"discontinued", statusPtr(domain.StatusOutOfStock), domain.StatusDiscontinued, []domain.EventType{domain.EventProductUnavailable}},
		{"recovered from error", statusPtr(domain.StatusError), domain.StatusAvailable, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
				return domain.Snapshot{Status: tt.next, Name: strPtr("x")}
			}
			product := testProduct()
			product.LastStatus = tt.prev

			_, err := h.processor.Process(context.Background(), product)
			require.NoError(t, err)

			if tt.want == nil {
				assert.Empty(t, h.notifier.types())
			} else {
				assert.Equal(t, tt.want, h.notifier.types())
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestProcess_PriceAdjustedAndPropagated(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.applyFn = func(productID int64, sourcing decimal.Decimal) (*pricing.Result, error) {
		before := testProduct()
		before.SourcingPrice = decimal.NewNullDecimal(decimal.NewFromInt(9000))
		after := before
		after.SourcingPrice = decimal.NewNullDecimal(sourcing)
		after.SellingPrice = decimal.NewFromInt(13000)
		return &pricing.Result{
			Before:          before,
			After:           after,
			SourcingChanged: true,
			Changed:         true,
			Record: &domain.PriceAdjustmentRecord{
				ProductID:       productID,
				OldSellingPrice: before.SellingPrice,
				NewSellingPrice: after.SellingPrice,
				NewMarginRate:   decimal.NewFromInt(30),
				Reason:          domain.ReasonSourcingPriceChange,
			},
		}, nil
	}
	h.guard.event = &domain.MarginEvent{Kind: domain.MarginLow}
	h.propagator.results = []channel.Result{
		{ChannelID: "coupang", Success: false, Message: "503"},
		{ChannelID: "smartstore", Success: true},
	}

	outcome, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, OutcomeAdjusted, outcome)

	require.Len(t, h.guard.calls, 1)
	assert.True(t, h.guard.calls[0].selling.Equal(decimal.NewFromInt(12000)), "guard sees the pre-change selling price")
	assert.True(t, h.guard.calls[0].sourcing.Equal(decimal.NewFromInt(10000)))

	require.Len(t, h.propagator.calls, 1)
	assert.Equal(t, []channel.Field{channel.FieldPrice}, h.propagator.calls[0].Fields())
	assert.True(t, h.propagator.calls[0].Price.Equal(decimal.NewFromInt(13000)))

	assert.Equal(t, []domain.EventType{domain.EventPriceChange, domain.EventPriceAdjustment}, h.notifier.types())
	adjustment := h.notifier.events[1].payload
	assert.Equal(t, true, adjustment["any_channel_updated"])
	assert.Len(t, adjustment["channels"], 2)

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.MarginEvents.WithLabelValues("low_margin")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ChannelUpdates.WithLabelValues("coupang", "failure")), 0)
}

func TestProcess_UnchangedSourcingDoesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	outcome, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Empty(t, h.guard.calls)
	assert.Empty(t, h.propagator.calls)
	assert.Empty(t, h.notifier.types())
}

func TestProcess_SourcingRecordedWithoutPriceChange(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.applyFn = func(int64, decimal.Decimal) (*pricing.Result, error) {
		return &pricing.Result{Before: testProduct(), After: testProduct(), SourcingChanged: true}, nil
	}

	outcome, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, OutcomeSourcingRecorded, outcome)
	assert.Len(t, h.guard.calls, 1)
	assert.Empty(t, h.propagator.calls)
	assert.Equal(t, []domain.EventType{domain.EventPriceChange}, h.notifier.types())
}

func TestProcess_AutoDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.applyFn = func(int64, decimal.Decimal) (*pricing.Result, error) {
		after := testProduct()
		after.IsActive = false
		return &pricing.Result{
			Before:          testProduct(),
			After:           after,
			SourcingChanged: true,
			Changed:         true,
			Disabled:        true,
			Record:          &domain.PriceAdjustmentRecord{NewMarginRate: decimal.NewFromInt(5), Reason: domain.ReasonLowMarginDisable},
		}, nil
	}

	_, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{
		domain.EventPriceChange,
		domain.EventPriceAdjustment,
		domain.EventProductUnavailable,
	}, h.notifier.types())
}

func TestProcess_DeactivatedProductIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.applyFn = func(int64, decimal.Decimal) (*pricing.Result, error) {
		locked := testProduct()
		locked.IsActive = false
		return &pricing.Result{Before: locked, After: locked, Inactive: true}, nil
	}

	outcome, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, OutcomeInactive, outcome)
	assert.Empty(t, h.guard.calls)
	assert.Empty(t, h.propagator.calls)
	assert.Empty(t, h.notifier.types())
}

func TestProcess_VersionConflictIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.applyFn = func(int64, decimal.Decimal) (*pricing.Result, error) {
		return nil, pricing.ErrVersionConflict
	}

	outcome, err := h.processor.Process(context.Background(), testProduct())

	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	h.engine.applyFn = func(int64, decimal.Decimal) (*pricing.Result, error) {
		return nil, errors.New("connection refused")
	}
	outcome, err = h.processor.Process(context.Background(), testProduct())
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)
}

func TestProcess_ResolvesMissingSource(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var got domain.Source
	h.monitor.runFn = func(_ string, source domain.Source) domain.Snapshot {
		got = source
		return availableSnapshot(10000)
	}
	product := testProduct()
	product.SourcingSource = ""

	_, err := h.processor.Process(context.Background(), product)

	require.NoError(t, err)
	assert.Equal(t, domain.SourceSSG, got)
}
