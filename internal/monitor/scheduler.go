package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	infralogger "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/coordination"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

const (
	DefaultInterval  = 30 * time.Minute
	DefaultPageLimit = 20
	DefaultPacing    = 3 * time.Second
	// MaxConcurrency caps how many products one cycle processes at once.
	MaxConcurrency = 8
)

// ErrCycleInProgress is returned when a cycle is already running here or on
// another replica.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// ProductLister selects the products due for a check, least recently checked
// first.
type ProductLister interface {
	ListDue(ctx context.Context, limit int) ([]domain.Product, error)
}

// CycleLock is an optional cross-replica mutex.
type CycleLock interface {
	TryAcquire(ctx context.Context) (*coordination.Lease, error)
}

// Config configures the Scheduler.
type Config struct {
	Interval  time.Duration
	PageLimit int
	// Pacing is the idle gap after each product before the next one starts.
	// With Concurrency above 1 it spaces product starts instead. Zero
	// disables pacing.
	Pacing time.Duration
	// Concurrency is clamped to MaxConcurrency.
	Concurrency int
	RunOnStart  bool
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		PageLimit:   DefaultPageLimit,
		Pacing:      DefaultPacing,
		Concurrency: 1,
	}
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration
	Products int
	Outcomes map[Outcome]int
	// Interrupted is set when the cycle stopped early on cancellation.
	Interrupted bool
}

// Scheduler runs monitoring cycles on a fixed interval. At most one cycle
// runs at a time.
type Scheduler struct {
	cfg       Config
	products  ProductLister
	processor *Processor
	lock      CycleLock
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    infralogger.Logger

	running  atomic.Bool
	cron     *cron.Cron
	cancel   context.CancelFunc
	startRun sync.WaitGroup
	mu       sync.Mutex
}

// NewScheduler creates a Scheduler. lock may be nil for single-replica use.
func NewScheduler(cfg Config, products ProductLister, processor *Processor, lock CycleLock, log infralogger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	if log == nil {
		log = infralogger.NewNop()
	}

	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}

	return &Scheduler{
		cfg:       cfg,
		products:  products,
		processor: processor,
		lock:      lock,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   processor.metrics,
		logger:    log,
	}
}

// Start schedules cycles every Interval until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	spec := "@every " + s.cfg.Interval.String()
	if _, err := c.AddFunc(spec, func() { s.runScheduled(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule cycle %q: %w", spec, err)
	}

	s.cron = c
	s.cancel = cancel
	c.Start()

	s.logger.Info("Scheduler started",
		infralogger.Duration("interval", s.cfg.Interval),
		infralogger.Int("page_limit", s.cfg.PageLimit),
		infralogger.Duration("pacing", s.cfg.Pacing),
		infralogger.Int("concurrency", s.cfg.Concurrency),
	)

	if s.cfg.RunOnStart {
		s.startRun.Add(1)
		go func() {
			defer s.startRun.Done()
			s.runScheduled(ctx)
		}()
	}
	return nil
}

// Stop cancels the running cycle between products and waits for it to
// finish, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	cancel()
	cronDone := c.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.startRun.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for running cycle: %w", ctx.Err())
	}

	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
		s.logger.Error("Monitoring cycle failed", infralogger.Error(err))
	}
}

// RunCycle processes one page of due products. It returns ErrCycleInProgress
// without doing anything when another cycle holds the guard. Cancelling ctx
// stops the cycle before the next product; a product already in flight is
// finished.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return nil, ErrCycleInProgress
	}
	defer s.running.Store(false)

	if s.lock != nil {
		lease, err := s.lock.TryAcquire(ctx)
		if errors.Is(err, coordination.ErrLockNotAcquired) {
			s.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
			return nil, ErrCycleInProgress
		}
		if err != nil {
			s.metrics.CyclesTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("acquire cycle lock: %w", err)
		}
		defer func() {
			if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
				s.logger.Warn("Failed to release cycle lock", infralogger.Error(relErr))
			}
		}()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go s.watchLease(ctx, lease, cancel)
	}

	report := &CycleReport{
		CycleID:  uuid.New().String(),
		Started:  time.Now(),
		Outcomes: make(map[Outcome]int),
	}
	log := s.logger.With(infralogger.String("cycle_id", report.CycleID))

	products, err := s.products.ListDue(ctx, s.cfg.PageLimit)
	if err != nil {
		s.metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("list due products: %w", err)
	}
	log.Info("Monitoring cycle started", infralogger.Int("products", len(products)))

	s.processAll(ctx, log, products, report)

	report.Duration = time.Since(report.Started)
	s.metrics.CycleDuration.Observe(report.Duration.Seconds())
	result := "completed"
	if report.Interrupted {
		result = "interrupted"
	}
	s.metrics.CyclesTotal.WithLabelValues(result).Inc()

	log.Info("Monitoring cycle finished",
		infralogger.Int("processed", report.Products),
		infralogger.Duration("duration", report.Duration),
		infralogger.Bool("interrupted", report.Interrupted),
		infralogger.Any("outcomes", report.Outcomes),
	)
	return report, nil
}

// watchLease stops the cycle between products once the lock can no longer
// be refreshed.
func (s *Scheduler) watchLease(ctx context.Context, lease *coordination.Lease, cancel context.CancelFunc) {
	select {
	case <-lease.Lost():
		s.logger.Warn("Cycle lock lost, stopping after the current product", infralogger.Error(lease.Err()))
		cancel()
	case <-ctx.Done():
	}
}

func (s *Scheduler) processAll(ctx context.Context, log infralogger.Logger, products []domain.Product, report *CycleReport) {
	if s.cfg.Concurrency == 1 {
		s.processSequential(ctx, log, products, report)
		return
	}
	s.processConcurrent(ctx, log, products, report)
}

// processSequential waits Pacing between the end of one product and the start
// of the next.
func (s *Scheduler) processSequential(ctx context.Context, log infralogger.Logger, products []domain.Product, report *CycleReport) {
	for i := range products {
		if i > 0 && !s.pause(ctx) {
			report.Interrupted = true
			return
		}
		if ctx.Err() != nil {
			report.Interrupted = true
			return
		}

		outcome := s.processOne(ctx, log, products[i])
		report.Products++
		report.Outcomes[outcome]++
	}
}

// processConcurrent spaces product starts by Pacing with at most Concurrency
// products in flight.
func (s *Scheduler) processConcurrent(ctx context.Context, log infralogger.Logger, products []domain.Product, report *CycleReport) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for i := range products {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			report.Interrupted = true
			break
		}

		product := products[i]
		g.Go(func() error {
			outcome := s.processOne(ctx, log, product)
			mu.Lock()
			report.Products++
			report.Outcomes[outcome]++
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
}

// pause sleeps for Pacing. It reports false when ctx ends first.
func (s *Scheduler) pause(ctx context.Context) bool {
	if s.cfg.Pacing <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(s.cfg.Pacing)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// processOne runs a product to completion even when ctx is cancelled midway.
// The cycle logger travels in the context so product entries carry cycle_id.
func (s *Scheduler) processOne(ctx context.Context, log infralogger.Logger, product domain.Product) Outcome {
	ctx = infralogger.WithContext(context.WithoutCancel(ctx), log)
	outcome, err := s.processor.Process(ctx, product)
	if err != nil {
		log.Warn("Product processing failed",
			infralogger.Int64("product_id", product.ID),
			infralogger.Error(err),
		)
	}
	return outcome
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	logger infralogger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(kvFields(keysAndValues), infralogger.Error(err))
	l.logger.Error("cron: "+msg, fields...)
}

func kvFields(keysAndValues []any) []infralogger.Field {
	fields := make([]infralogger.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, infralogger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
