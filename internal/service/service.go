package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"p2pwatcher/internal/aggregate"
	"p2pwatcher/internal/alerting"
	"p2pwatcher/internal/analyzer"
	"p2pwatcher/internal/fetcher"
	"p2pwatcher/internal/history"
	"p2pwatcher/internal/metrics"
	"p2pwatcher/internal/quote"
	"p2pwatcher/internal/scheduler"
	"p2pwatcher/internal/storage"
)

const (
	defaultSnapshotEvery = 10
	shutdownFlushTimeout = 15 * time.Second
)

var (
	// ErrNoQuotes marks a tick where neither side produced a usable price.
	ErrNoQuotes = errors.New("no usable quotes on either side")
	// ErrSnapshotBlocked is returned by Flush while the persisted history
	// could not be loaded; saving would replace it with a partial window.
	ErrSnapshotBlocked = errors.New("persisted history not loaded, snapshot refused")
)

// Options tune the monitor.
type Options struct {
	Interval        time.Duration
	SnapshotEvery   int
	HistoryCapacity int
	Location        *time.Location
	AdvisoryLockKey int64
	NewTicker       scheduler.TickerFactory
	Now             func() time.Time
}

// Status extends the scheduler status with history figures.
type Status struct {
	scheduler.Status
	HistorySize  int             `json:"historySize"`
	HistoryCap   int             `json:"historyCapacity"`
	TotalSamples uint64          `json:"totalSamples"`
	LastSample   *storage.Sample `json:"lastSample,omitempty"`
}

// Monitor owns the sampling pipeline: scheduler, history and hourly rollup.
type Monitor struct {
	source   fetcher.QuoteSource
	gateway  storage.Gateway
	alerter  *alerting.SpreadAlerter
	sched    *scheduler.Scheduler
	history  *history.Store
	hourly   *aggregate.Aggregator
	location *time.Location
	now      func() time.Time
	logger   zerolog.Logger

	snapshotEvery int
	locker        storage.AdvisoryLocker
	lockKey       int64

	// mu pairs each history append with its aggregate update for readers.
	mu sync.RWMutex

	// sinceSnapshot counts samples committed since the last load or save.
	sinceSnapshot    int
	loadErr          error
	flushMu          sync.Mutex
	snapshotFailures uint64
}

// New constructs the monitor. gateway and alerter may be nil.
func New(opts Options, source fetcher.QuoteSource, gateway storage.Gateway, alerter *alerting.SpreadAlerter, logger zerolog.Logger) *Monitor {
	if source == nil {
		panic("service quote source must be set")
	}
	if opts.SnapshotEvery <= 0 {
		opts.SnapshotEvery = defaultSnapshotEvery
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var locker storage.AdvisoryLocker
	if l, ok := gateway.(storage.AdvisoryLocker); ok {
		locker = l
	}

	m := &Monitor{
		source:        source,
		gateway:       gateway,
		alerter:       alerter,
		history:       history.New(opts.HistoryCapacity),
		hourly:        aggregate.New(),
		location:      opts.Location,
		now:           opts.Now,
		logger:        logger.With().Str("component", "service").Logger(),
		snapshotEvery: opts.SnapshotEvery,
		locker:        locker,
		lockKey:       opts.AdvisoryLockKey,
	}
	m.sched = scheduler.New(scheduler.Options{
		Interval:  opts.Interval,
		NewTicker: opts.NewTicker,
		Now:       opts.Now,
	}, m.Tick, logger)
	return m
}

// Load seeds history and hourly rollup from the gateway.
func (m *Monitor) Load(ctx context.Context) error {
	if m.gateway == nil {
		return nil
	}
	samples, err := m.gateway.LoadAll(ctx)
	if err != nil {
		err = fmt.Errorf("load history: %w", err)
		m.mu.Lock()
		m.loadErr = err
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.history.Seed(samples)
	m.hourly.Fold(samples)
	m.loadErr = nil
	m.mu.Unlock()

	metrics.HistorySize.Set(float64(m.history.Len()))
	m.logger.Info().Int("samples", len(samples)).Int("retained", m.history.Len()).Msg("history loaded")
	return nil
}

// Run drives the scheduler until ctx is cancelled, then writes a final snapshot.
func (m *Monitor) Run(ctx context.Context) error {
	err := m.sched.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	if ferr := m.Flush(flushCtx); ferr != nil {
		m.logger.Error().Err(ferr).Msg("final snapshot failed")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Start begins a monitoring session.
func (m *Monitor) Start(cfg scheduler.Config) (Status, error) {
	_, err := m.sched.Start(cfg)
	return m.Status(), err
}

// Stop ends the monitoring session.
func (m *Monitor) Stop() (Status, error) {
	err := m.sched.Stop()
	return m.Status(), err
}

// Wait blocks until the last session loop exits.
func (m *Monitor) Wait() {
	m.sched.Wait()
}

// Status reports scheduler state and history size.
func (m *Monitor) Status() Status {
	st := Status{Status: m.sched.Status()}

	m.mu.RLock()
	st.HistorySize = m.history.Len()
	st.HistoryCap = m.history.Cap()
	st.TotalSamples = m.history.Appended()
	if last, ok := m.history.Latest(); ok {
		st.LastSample = &last
	}
	m.mu.RUnlock()
	return st
}

// Hourly returns the hour buckets sorted by hour.
func (m *Monitor) Hourly() []aggregate.HourBucket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hourly.Snapshot()
}

// Analyze runs the strategy analysis over the current hourly rollup.
func (m *Monitor) Analyze() analyzer.Result {
	return analyzer.Analyze(m.Hourly())
}

// History returns up to n most recent samples, oldest first. n <= 0 returns all.
func (m *Monitor) History(n int) []storage.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Last(n)
}

// Tick performs one sampling cycle.
func (m *Monitor) Tick(ctx context.Context, cfg scheduler.Config) error {
	unlock, proceed, err := m.acquireLock(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues(metrics.ResultFetchFailed).Inc()
		return err
	}
	if !proceed {
		metrics.TicksTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		m.logger.Debug().Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	buys, sells, err := m.fetchBoth(ctx, cfg)
	if err != nil {
		metrics.TicksTotal.WithLabelValues(metrics.ResultFetchFailed).Inc()
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			metrics.FetchErrorsTotal.WithLabelValues(fe.Side.String(), string(fe.Kind)).Inc()
		}
		return fmt.Errorf("fetch quotes: %w", err)
	}

	in := storage.SampleInput{
		Timestamp: m.now(),
		MinAmount: cfg.MinAmount,
		Bank:      cfg.Bank,
	}
	if q, ok := quote.Select(buys); ok {
		in.BuyPrice = q.Price
		in.BuyerName = q.Counterparty
	}
	if q, ok := quote.Select(sells); ok {
		in.SellPrice = q.Price
		in.SellerName = q.Counterparty
	}

	sample, ok := storage.NewSample(in, m.location)
	if !ok {
		metrics.TicksTotal.WithLabelValues(metrics.ResultNoQuotes).Inc()
		m.logger.Warn().Int("buy_entries", len(buys)).Int("sell_entries", len(sells)).Msg("no representative quote on either side")
		return ErrNoQuotes
	}

	m.commit(sample)
	metrics.TicksTotal.WithLabelValues(metrics.ResultOK).Inc()

	m.logger.Info().
		Str("buy", sample.BuyPrice.StringFixed(2)).
		Str("buyer", sample.BuyerName).
		Str("sell", sample.SellPrice.StringFixed(2)).
		Str("seller", sample.SellerName).
		Str("spread_pct", sample.SpreadPercent.StringFixed(2)).
		Msg("sample recorded")

	m.maybeSnapshot(ctx)
	m.maybeAlert(ctx, sample)
	return nil
}

func (m *Monitor) fetchBoth(ctx context.Context, cfg scheduler.Config) (buys, sells []quote.OrderBookEntry, err error) {
	started := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(started).Seconds()) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buys, err = m.source.FetchSide(gctx, quote.Buy, cfg.MinAmount, cfg.Bank)
		return err
	})
	g.Go(func() error {
		var err error
		sells, err = m.source.FetchSide(gctx, quote.Sell, cfg.MinAmount, cfg.Bank)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return buys, sells, nil
}

func (m *Monitor) commit(sample storage.Sample) {
	m.mu.Lock()
	m.history.Append(sample)
	m.hourly.Add(sample)
	m.sinceSnapshot++
	size := m.history.Len()
	m.mu.Unlock()

	metrics.SamplesTotal.Inc()
	metrics.HistorySize.Set(float64(size))
	metrics.LastSpreadPercent.Set(sample.SpreadPercent.InexactFloat64())
}

func (m *Monitor) maybeSnapshot(ctx context.Context) {
	m.mu.RLock()
	due := m.sinceSnapshot >= m.snapshotEvery
	m.mu.RUnlock()
	if !due {
		return
	}
	if err := m.Flush(ctx); err != nil {
		m.logger.Error().Err(err).Msg("snapshot failed, in-memory history kept")
	}
}

// Flush writes the retained history through the gateway. It is a no-op
// when nothing was committed since the last load or save, and it refuses
// to write after a failed Load.
func (m *Monitor) Flush(ctx context.Context) error {
	if m.gateway == nil {
		return nil
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.Lock()
	if m.loadErr != nil {
		loadErr := m.loadErr
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSnapshotBlocked, loadErr)
	}
	pending := m.sinceSnapshot
	if pending == 0 {
		m.mu.Unlock()
		return nil
	}
	samples := m.history.Snapshot()
	m.sinceSnapshot = 0
	m.mu.Unlock()

	if err := m.gateway.SaveAll(ctx, samples); err != nil {
		metrics.SnapshotFailuresTotal.Inc()
		m.mu.Lock()
		m.sinceSnapshot += pending
		m.snapshotFailures++
		m.mu.Unlock()
		return fmt.Errorf("save history: %w", err)
	}
	m.logger.Debug().Int("samples", len(samples)).Msg("snapshot written")
	return nil
}

// SnapshotFailures counts failed SaveAll calls.
func (m *Monitor) SnapshotFailures() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotFailures
}

func (m *Monitor) maybeAlert(ctx context.Context, sample storage.Sample) {
	if m.alerter == nil || !sample.BuyPrice.IsPositive() || !sample.SellPrice.IsPositive() {
		return
	}
	note := alerting.Notification{
		SampledAt:     sample.Timestamp.In(m.location),
		BuyPrice:      sample.BuyPrice,
		SellPrice:     sample.SellPrice,
		Spread:        sample.Spread,
		SpreadPercent: sample.SpreadPercent,
		BuyerName:     sample.BuyerName,
		SellerName:    sample.SellerName,
		MinAmount:     sample.MinAmount,
		Bank:          sample.Bank,
	}
	sent, err := m.alerter.Evaluate(ctx, note)
	switch {
	case err != nil:
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		m.logger.Error().Err(err).Msg("failed to dispatch alert")
	case sent:
		metrics.AlertsTotal.WithLabelValues("sent").Inc()
	}
}

func (m *Monitor) acquireLock(ctx context.Context) (func(), bool, error) {
	if m.lockKey == 0 || m.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := m.locker.TryAdvisoryLock(ctx, m.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
