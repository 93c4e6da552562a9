// Package depositmonitor implements the Deposit/Activation Monitor (§4.8): it
// watches PendingActivation rows for incoming deposits and flips them to
// active tokens once the expected deposit clears, or expires them once their
// window elapses.
package depositmonitor

import (
	"context"
	"sync"
	"time"

	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/chain"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/pkg/logger"
)

// Notifier delivers a user-facing activation/expiry notice. Production
// wiring points this at the platform's own bot/notification surface; this
// package only defines the boundary it calls through.
type Notifier interface {
	NotifyActivated(ctx context.Context, ownerID, tokenID string) error
	NotifyExpired(ctx context.Context, ownerID, pendingID string) error
}

// Monitor is the Deposit/Activation Monitor.
type Monitor struct {
	store    storage.Store
	cache    *marketcache.Cache
	chainID  chain.ChainID
	notifier Notifier
	period   time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config configures a Monitor.
type Config struct {
	Store    storage.Store
	Cache    *marketcache.Cache
	ChainID  chain.ChainID
	Notifier Notifier
	Period   time.Duration
}

// New builds a Monitor, defaulting to the §6 30-second poll period.
func New(cfg Config) *Monitor {
	if cfg.Period <= 0 {
		cfg.Period = 30 * time.Second
	}
	return &Monitor{
		store:    cfg.Store,
		cache:    cfg.Cache,
		chainID:  cfg.ChainID,
		notifier: cfg.Notifier,
		period:   cfg.Period,
		log:      logger.NewDefault("deposit-monitor"),
	}
}

func (m *Monitor) Name() string { return "deposit-activation-monitor" }

func (m *Monitor) Descriptor() core.Descriptor {
	return core.Descriptor{Name: m.Name(), Domain: "depositmonitor", Layer: core.LayerEngine, Capabilities: []string{"deposit-watch", "activation"}}
}

func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.loop(runCtx)
	return nil
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick inspects every row awaiting deposit, activating ones that have
// cleared, expiring ones past their window, and leaving the rest untouched.
func (m *Monitor) Tick(ctx context.Context) {
	pending, err := m.store.ListAwaitingDeposit(ctx)
	if err != nil {
		m.log.WithError(err).Error("failed to list pending activations")
		return
	}

	now := time.Now()
	for _, p := range pending {
		if p.Status != domain.PendingAwaitingDeposit {
			continue
		}
		if now.After(p.ExpiresAt) {
			m.expire(ctx, p)
			continue
		}
		m.checkDeposit(ctx, p)
	}
}

func (m *Monitor) checkDeposit(ctx context.Context, p domain.PendingActivation) {
	// Deposits always settle in the chain's native asset (§4.8); the
	// expected address is invalidated first so the cache never serves a
	// balance observed before this tick's poll.
	m.cache.InvalidateNative(p.ExpectedDepositAddress)
	balance, err := m.cache.NativeBalance(ctx, m.chainID, p.ExpectedDepositAddress)
	if err != nil {
		m.log.WithField("pending_id", p.ID).WithError(err).Warn("failed to read deposit address balance")
		return
	}
	if balance.LessThan(p.MinAmount) {
		return
	}

	token, err := m.store.ActivatePending(ctx, p.ID)
	if err != nil {
		if err == storage.ErrConflict {
			return // already activated/cancelled by a concurrent tick or admin action
		}
		m.log.WithField("pending_id", p.ID).WithError(err).Error("failed to activate pending row")
		return
	}

	m.log.WithField("pending_id", p.ID).WithField("token_id", token.ID).Info("pending activation fulfilled")
	if m.notifier != nil {
		if nerr := m.notifier.NotifyActivated(ctx, p.Payload.OwnerID, token.ID); nerr != nil {
			m.log.WithField("token_id", token.ID).WithError(nerr).Warn("failed to send activation notification")
		}
	}
}

func (m *Monitor) expire(ctx context.Context, p domain.PendingActivation) {
	if err := m.store.ExpirePendingActivation(ctx, p.ID); err != nil {
		m.log.WithField("pending_id", p.ID).WithError(err).Error("failed to expire pending activation")
		return
	}
	m.log.WithField("pending_id", p.ID).Info("pending activation expired")
	if m.notifier != nil {
		if nerr := m.notifier.NotifyExpired(ctx, p.Payload.OwnerID, p.ID); nerr != nil {
			m.log.WithField("pending_id", p.ID).WithError(nerr).Warn("failed to send expiry notification")
		}
	}
}
