package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thejerf/abtime"

	"github.com/MrEthical07/goTrust/internal/logging"
	"github.com/MrEthical07/goTrust/store"
)

const (
	// DefaultInterval is how often Start runs a sweep.
	DefaultInterval = 24 * time.Hour
	// DefaultRetention is how long a permanently banned account is kept.
	DefaultRetention = 180 * 24 * time.Hour
)

// TickerID is the abtime id of the sweep ticker. Tests trigger it on a
// ManualTime.
const TickerID = 1

// CascadeOrder is the deletion order for an account's dependent rows.
var CascadeOrder = []store.Dependent{
	store.DependentSessions,
	store.DependentTickets,
	store.DependentTwoFactor,
	store.DependentWarningsReceived,
	store.DependentWarningsIssued,
	store.DependentBans,
}

// Config tunes a Sweeper. Zero values take the defaults.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// Report summarizes one run.
type Report struct {
	AccountsPurged int
	// Rows counts deleted dependent rows per kind.
	Rows          map[store.Dependent]int64
	TicketsPurged int64
	// Failed lists accounts whose cascade was rolled back.
	Failed []string
}

// Sweeper runs retention sweeps. It is safe for concurrent use; overlapping
// RunOnce calls are serialized.
type Sweeper struct {
	store  store.Store
	clock  abtime.AbstractTime
	config Config
	logger logging.Logger
	onRun  func(Report)

	runMu sync.Mutex

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger for run summaries and failures.
func WithLogger(l logging.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithOnRun registers a callback invoked after every run, scheduled or not.
func WithOnRun(fn func(Report)) Option {
	return func(s *Sweeper) { s.onRun = fn }
}

// New returns a Sweeper over st. A nil clock uses real time.
func New(st store.Store, clock abtime.AbstractTime, cfg Config, opts ...Option) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	s := &Sweeper{
		store:  st,
		clock:  clock,
		config: cfg,
		logger: logging.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce purges every eligible account and the expired tickets. A failing
// account is logged and skipped; the error reports the first listing or
// ticket failure only.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	now := s.clock.Now()
	rep := Report{Rows: make(map[store.Dependent]int64, len(CascadeOrder))}

	cutoff := now.Add(-s.config.Retention)
	ids, err := s.store.PermanentBansBefore(ctx, cutoff)
	if err != nil {
		return rep, fmt.Errorf("list permanent bans: %w", err)
	}

	for _, id := range ids {
		rows, err := s.purgeAccount(ctx, id)
		if err != nil {
			rep.Failed = append(rep.Failed, id)
			s.logger.Error(ctx, "sweeper: purge failed", "account_id", id, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		rep.AccountsPurged++
		for kind, n := range rows {
			rep.Rows[kind] += n
		}
	}

	if ctx.Err() == nil {
		n, err := s.store.DeleteExpiredTickets(ctx, now)
		if err != nil {
			s.finish(ctx, rep)
			return rep, fmt.Errorf("purge expired tickets: %w", err)
		}
		rep.TicketsPurged = n
	}

	s.finish(ctx, rep)
	return rep, ctx.Err()
}

func (s *Sweeper) finish(ctx context.Context, rep Report) {
	if rep.AccountsPurged > 0 || rep.TicketsPurged > 0 || len(rep.Failed) > 0 {
		s.logger.Info(ctx, "sweeper: run finished",
			"accounts_purged", rep.AccountsPurged,
			"tickets_purged", rep.TicketsPurged,
			"failed", len(rep.Failed),
		)
	}
	if s.onRun != nil {
		s.onRun(rep)
	}
}

var errAccountVanished = errors.New("account already deleted")

func (s *Sweeper) purgeAccount(ctx context.Context, accountID string) (map[store.Dependent]int64, error) {
	rows := make(map[store.Dependent]int64, len(CascadeOrder))
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		for _, kind := range CascadeOrder {
			n, err := tx.PurgeDependents(ctx, kind, accountID)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			rows[kind] = n
		}
		deleted, err := tx.DeleteAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("account: %w", err)
		}
		if !deleted {
			return errAccountVanished
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Start runs a sweep every Interval until ctx ends or Stop is called. It
// returns immediately; calling it twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	ticker := s.clock.NewTicker(s.config.Interval, TickerID)
	go s.loop(ctx, ticker, s.stop, s.stopped)
}

func (s *Sweeper) loop(ctx context.Context, ticker abtime.Ticker, stop, stopped chan struct{}) {
	defer close(stopped)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.Channel():
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, "sweeper: run incomplete", "error", err)
			}
		}
	}
}

// Stop ends the loop started by Start and waits for an in-flight run.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}
