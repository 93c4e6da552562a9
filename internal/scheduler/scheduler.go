// Package scheduler implements the Fleet Scheduler (§4.7): the periodic
// driver that advances the Cycle State Machine for every eligible token
// under a global trades-per-minute budget.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/cycle"
	"github.com/solward/flywheel/internal/errsink"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/tokenlock"
	"github.com/solward/flywheel/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Summary aggregates one tick's outcomes, returned to callers and logged.
type Summary struct {
	Eligible int
	Traded   int
	Skipped  int
	Paused   int
	Failed   int
	Started  time.Time
	Duration time.Duration
}

// Scheduler ticks on a fixed period, advancing one cycle step per eligible
// token per tick, enforcing the global max_trades_per_minute budget (§5).
type Scheduler struct {
	store     storage.Store
	machine   *cycle.Machine
	locks     *tokenlock.Striped
	limiter   *rate.Limiter
	sink      *errsink.Sink
	period    time.Duration
	interTokenDelay time.Duration
	algorithm string // optional filter; "" = all algorithms

	log    *logger.Logger
	ticks  prometheus.Counter
	trades *prometheus.CounterVec

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config configures a Scheduler instance.
type Config struct {
	Store              storage.Store
	Machine            *cycle.Machine
	Locks              *tokenlock.Striped
	Sink               *errsink.Sink
	Period             time.Duration
	MaxTradesPerMinute int
	InterTokenDelay    time.Duration
	Algorithm          string
	Registry           prometheus.Registerer
}

// New builds a Scheduler from cfg, applying the §6 defaults where unset.
func New(cfg Config) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.MaxTradesPerMinute <= 0 {
		cfg.MaxTradesPerMinute = 30
	}
	s := &Scheduler{
		store:           cfg.Store,
		machine:         cfg.Machine,
		locks:           cfg.Locks,
		limiter:         rate.NewLimiter(rate.Limit(float64(cfg.MaxTradesPerMinute)/60.0), cfg.MaxTradesPerMinute),
		sink:            cfg.Sink,
		period:          cfg.Period,
		interTokenDelay: cfg.InterTokenDelay,
		algorithm:       cfg.Algorithm,
		log:             logger.NewDefault("fleet-scheduler"),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flywheel_scheduler_ticks_total",
			Help: "Fleet Scheduler ticks executed.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flywheel_scheduler_outcomes_total",
			Help: "Fleet Scheduler per-token outcomes by kind.",
		}, []string{"outcome"}),
	}
	if cfg.Registry != nil {
		cfg.Registry.MustRegister(s.ticks, s.trades)
	}
	return s
}

func (s *Scheduler) Name() string { return "fleet-scheduler" }

func (s *Scheduler) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.Name(), Domain: "scheduler", Layer: core.LayerEngine, Capabilities: []string{"cycle-tick"}}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(30 * time.Second):
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs exactly one scheduler iteration (§4.7 steps 1-5).
func (s *Scheduler) Tick(ctx context.Context) Summary {
	start := time.Now()
	s.ticks.Inc()

	eligible, err := s.store.ListTokensForScheduler(ctx, s.algorithm)
	if err != nil {
		s.log.WithError(err).Error("failed to list eligible tokens")
		return Summary{Started: start, Duration: time.Since(start)}
	}

	budget := s.perTickBudget(len(eligible))
	rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })

	summary := Summary{Eligible: len(eligible), Started: start}
	traded := 0
	for _, st := range eligible {
		if traded >= budget {
			break
		}
		select {
		case <-ctx.Done():
			summary.Duration = time.Since(start)
			return summary
		default:
		}

		release, ok := s.locks.TryAcquire(st.Token.ID)
		if !ok {
			continue // already busy with a scheduler step or a claim; skip this tick (§5)
		}

		if !s.limiter.Allow() {
			release()
			continue
		}

		outcome := s.machine.Step(ctx, st)
		release()

		switch {
		case outcome.Err != nil:
			summary.Failed++
			s.trades.WithLabelValues("error").Inc()
			if s.sink != nil {
				s.sink.Report(ctx, errsink.Report{
					Kind:      errsink.KindInvariantViolation,
					Module:    "scheduler",
					Operation: "tick",
					ActorIDs:  map[string]string{"token": outcome.TokenID},
					Err:       outcome.Err,
				})
			}
		case outcome.Paused:
			summary.Paused++
			s.trades.WithLabelValues("paused").Inc()
		case outcome.Traded:
			summary.Traded++
			traded++
			s.trades.WithLabelValues("traded").Inc()
		default:
			summary.Skipped++
			s.trades.WithLabelValues("skipped").Inc()
		}

		if s.interTokenDelay > 0 {
			time.Sleep(s.interTokenDelay)
		}
	}

	summary.Duration = time.Since(start)
	s.log.WithFields(map[string]interface{}{
		"eligible": summary.Eligible,
		"traded":   summary.Traded,
		"skipped":  summary.Skipped,
		"paused":   summary.Paused,
		"failed":   summary.Failed,
		"duration": summary.Duration.String(),
	}).Info("fleet scheduler tick complete")
	return summary
}

// perTickBudget implements budget := min(max_trades_per_minute * period_minutes, len(eligible)).
func (s *Scheduler) perTickBudget(eligibleCount int) int {
	periodMinutes := s.period.Minutes()
	capacity := int(float64(s.limiter.Burst()) * periodMinutes)
	if capacity <= 0 {
		capacity = s.limiter.Burst()
	}
	if capacity > eligibleCount {
		return eligibleCount
	}
	return capacity
}
