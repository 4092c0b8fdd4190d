package monitor //nolint:testpackage // Testing internal scheduler requires same package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/coordination"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

type fakeLister struct {
	mu        sync.Mutex
	products  []domain.Product
	lastLimit int
	err       error
}

func (l *fakeLister) ListDue(_ context.Context, limit int) ([]domain.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastLimit = limit
	if l.err != nil {
		return nil, l.err
	}
	if len(l.products) > limit {
		return l.products[:limit], nil
	}
	return l.products, nil
}

func products(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		out[i] = testProduct()
		out[i].ID = int64(i + 1)
	}
	return out
}

func unpaced() Config {
	cfg := DefaultConfig()
	cfg.Pacing = 0
	return cfg
}

func TestRunCycle_ProcessesOnePage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	lister := &fakeLister{products: products(25)}
	s := NewScheduler(unpaced(), lister, h.processor, nil, nil)

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, lister.lastLimit)
	assert.Equal(t, DefaultPageLimit, report.Products)
	assert.Equal(t, DefaultPageLimit, report.Outcomes[OutcomeUnchanged])
	assert.NotEmpty(t, report.CycleID)
	assert.False(t, report.Interrupted)
}

func TestRunCycle_SingleFlight(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		once.Do(func() { close(entered) })
		<-release
		return availableSnapshot(10000)
	}
	s := NewScheduler(unpaced(), &fakeLister{products: products(1)}, h.processor, nil, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := s.RunCycle(context.Background())
		errc <- err
	}()
	<-entered

	_, err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleInProgress)

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, h.monitor.calls)
}

func TestRunCycle_CancelStopsBetweenProducts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		cancel()
		return availableSnapshot(10000)
	}
	s := NewScheduler(unpaced(), &fakeLister{products: products(5)}, h.processor, nil, nil)

	report, err := s.RunCycle(ctx)

	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Products, "the in-flight product is finished")
	assert.Equal(t, 1, h.engine.calls)
}

func TestRunCycle_Pacing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.Pacing = 40 * time.Millisecond
	s := NewScheduler(cfg, &fakeLister{products: products(3)}, h.processor, nil, nil)

	start := time.Now()
	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Products)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunCycle_PacingIsIdleGapAfterEachProduct(t *testing.T) {
	t.Parallel()

	const (
		pacing = 50 * time.Millisecond
		work   = 80 * time.Millisecond
	)

	h := newHarness(t)
	var starts, ends []time.Time
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		starts = append(starts, time.Now())
		time.Sleep(work)
		ends = append(ends, time.Now())
		return availableSnapshot(10000)
	}
	cfg := DefaultConfig()
	cfg.Pacing = pacing
	s := NewScheduler(cfg, &fakeLister{products: products(3)}, h.processor, nil, nil)

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Products)
	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(ends[i-1]), pacing, "gap before product %d", i+1)
	}
}

func TestRunCycle_CancelDuringPacing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		time.AfterFunc(10*time.Millisecond, cancel)
		return availableSnapshot(10000)
	}
	cfg := DefaultConfig()
	cfg.Pacing = time.Hour
	s := NewScheduler(cfg, &fakeLister{products: products(3)}, h.processor, nil, nil)

	report, err := s.RunCycle(ctx)

	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Products)
}

func TestNewScheduler_ClampsConcurrency(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cfg := unpaced()
	cfg.Concurrency = 100
	s := NewScheduler(cfg, &fakeLister{}, h.processor, nil, nil)

	assert.Equal(t, MaxConcurrency, s.cfg.Concurrency)
}

func TestRunCycle_ConcurrentProcessing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cfg := unpaced()
	cfg.Concurrency = 4
	s := NewScheduler(cfg, &fakeLister{products: products(8)}, h.processor, nil, nil)

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 8, report.Products)
	assert.Equal(t, 8, h.monitor.calls)
}

func TestRunCycle_ListError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := NewScheduler(unpaced(), &fakeLister{err: errors.New("db down")}, h.processor, nil, nil)

	_, err := s.RunCycle(context.Background())
	require.Error(t, err)

	// The guard is released after a failed cycle.
	_, err = s.RunCycle(context.Background())
	require.NotErrorIs(t, err, ErrCycleInProgress)
}

func TestRunCycle_DistributedLock(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := newHarness(t)
	lock := coordination.NewLock(client, "pricewatch:cycle", time.Minute)
	s := NewScheduler(unpaced(), &fakeLister{products: products(1)}, h.processor, lock, nil)

	require.NoError(t, mr.Set("pricewatch:cycle", "other-replica"))
	_, err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleInProgress)
	assert.Zero(t, h.monitor.calls)

	mr.Del("pricewatch:cycle")
	_, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.monitor.calls)
	assert.False(t, mr.Exists("pricewatch:cycle"), "lock released after the cycle")
}

func TestRunCycle_StopsWhenLockIsLost(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := newHarness(t)
	h.monitor.runFn = func(string, domain.Source) domain.Snapshot {
		_ = mr.Set("pricewatch:cycle", "other-replica")
		time.Sleep(150 * time.Millisecond)
		return availableSnapshot(10000)
	}
	lock := coordination.NewLock(client, "pricewatch:cycle", 30*time.Millisecond)
	s := NewScheduler(unpaced(), &fakeLister{products: products(3)}, h.processor, lock, nil)

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Products)
	got, getErr := mr.Get("pricewatch:cycle")
	require.NoError(t, getErr)
	assert.Equal(t, "other-replica", got, "the new holder's key is left alone")
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cfg := unpaced()
	cfg.RunOnStart = true
	s := NewScheduler(cfg, &fakeLister{products: products(2)}, h.processor, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		h.monitor.mu.Lock()
		defer h.monitor.mu.Unlock()
		return h.monitor.calls == 2
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
