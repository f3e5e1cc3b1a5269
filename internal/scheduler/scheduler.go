package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInterval is the sampling cadence used when Options.Interval is unset.
const DefaultInterval = 30 * time.Second

var (
	// ErrInvalidConfiguration rejects a Start whose parameters cannot be sampled.
	ErrInvalidConfiguration = errors.New("invalid monitoring configuration")
	// ErrAlreadyRunning is reported by Start while a session is active.
	ErrAlreadyRunning = errors.New("monitoring already running")
	// ErrNotRunning is reported by Stop while idle.
	ErrNotRunning = errors.New("monitoring not running")
)

// State of the sampling session.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Config holds the per-session sampling parameters.
type Config struct {
	MinAmount int64  `json:"minAmount"`
	Bank      string `json:"bank,omitempty"`
}

// Validate checks the parameters before a session is started.
func (c Config) Validate() error {
	if c.MinAmount <= 0 {
		return ErrInvalidConfiguration
	}
	return nil
}

// TickFunc is invoked once per tick with the session configuration.
type TickFunc func(ctx context.Context, cfg Config) error

// Ticker is the subset of time.Ticker the loop relies on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the periodic timer for a session.
type TickerFactory func(interval time.Duration) Ticker

// Options tune scheduler behaviour.
type Options struct {
	Interval  time.Duration
	NewTicker TickerFactory
	Now       func() time.Time
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State      State     `json:"state"`
	Running    bool      `json:"isRunning"`
	Config     *Config   `json:"config,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	Interval   string    `json:"interval"`
	Ticks      uint64    `json:"ticks"`
	Failures   uint64    `json:"failures"`
	LastTickAt time.Time `json:"lastTickAt,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}

type session struct {
	id        string
	cfg       Config
	startedAt time.Time
	stop      chan struct{}
	done      chan struct{}
}

// Scheduler runs ticks on a fixed cadence between Start and Stop.
type Scheduler struct {
	opts   Options
	tick   TickFunc
	logger zerolog.Logger

	mu       sync.Mutex
	baseCtx  context.Context
	current  *session
	last     *session
	ticks    uint64
	failures uint64
	lastTick time.Time
	lastErr  string

	// tickMu keeps ticks from overlapping across stop/start cycles.
	tickMu sync.Mutex
}

// New constructs a Scheduler instance.
func New(opts Options, tick TickFunc, logger zerolog.Logger) *Scheduler {
	if tick == nil {
		panic("scheduler tick function must be set")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		opts:    opts,
		tick:    tick,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		baseCtx: context.Background(),
	}
}

// Run binds ticks to ctx and blocks until it is cancelled, then stops the
// active session and waits for its in-flight tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	<-ctx.Done()

	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	s.Wait()
	return ctx.Err()
}

// Start validates cfg and begins a session with one immediate tick.
func (s *Scheduler) Start(cfg Config) (Status, error) {
	cfg.Bank = strings.TrimSpace(cfg.Bank)
	if err := cfg.Validate(); err != nil {
		return s.Status(), err
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return s.Status(), ErrAlreadyRunning
	}
	sess := &session{
		id:        uuid.NewString(),
		cfg:       cfg,
		startedAt: s.opts.Now(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.current = sess
	s.last = sess
	ctx := s.baseCtx
	s.mu.Unlock()

	s.logger.Info().
		Str("session", sess.id).
		Int64("min_amount", cfg.MinAmount).
		Str("bank", cfg.Bank).
		Dur("interval", s.opts.Interval).
		Msg("monitoring started")

	go s.loop(ctx, sess)
	return s.Status(), nil
}

// Stop disarms the timer. An in-flight tick still completes.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	sess := s.current
	if sess == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.current = nil
	close(sess.stop)
	s.mu.Unlock()

	s.logger.Info().Str("session", sess.id).Msg("monitoring stopped")
	return nil
}

// Wait blocks until the most recent session's loop has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	sess := s.last
	s.mu.Unlock()
	if sess != nil {
		<-sess.done
	}
}

// Running reports whether a session is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Status returns the scheduler state without side effects.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:      StateIdle,
		Interval:   s.opts.Interval.String(),
		Ticks:      s.ticks,
		Failures:   s.failures,
		LastTickAt: s.lastTick,
		LastError:  s.lastErr,
	}
	if sess := s.current; sess != nil {
		cfg := sess.cfg
		st.State = StateActive
		st.Running = true
		st.Config = &cfg
		st.SessionID = sess.id
		st.StartedAt = sess.startedAt
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, sess *session) {
	defer close(sess.done)

	s.runTick(ctx, sess)

	ticker := s.opts.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			select {
			case <-sess.stop:
				return
			default:
			}
			s.runTick(ctx, sess)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, sess *session) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	err := s.tick(ctx, sess.cfg)

	s.mu.Lock()
	s.ticks++
	s.lastTick = s.opts.Now()
	if err != nil {
		s.failures++
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("session", sess.id).Msg("tick execution failed")
	}
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
