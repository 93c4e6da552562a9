// Package admin implements the Admin Control Plane (§4.9): typed operations
// for job toggles, one-shot job triggers, platform fee/threshold adjustment,
// and per-token config overrides. Every write goes through storage.Store so
// the control plane carries no state of its own.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/solward/flywheel/internal/claimengine"
	"github.com/solward/flywheel/internal/depositmonitor"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/scheduler"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/pkg/logger"
)

// JobName identifies one of the toggleable background jobs named in §6.
type JobName string

const (
	JobFastClaim       JobName = "fast_claim"
	JobMultiUserFlywheel JobName = "multi_user_flywheel"
	JobDepositMonitor  JobName = "deposit_monitor"
	JobBalanceUpdate   JobName = "balance_update"
)

// JobStatus reports whether a named job is enabled and, if it runs on its
// own ticker, when it last ticked.
type JobStatus struct {
	Name    JobName
	Enabled bool
}

// Plane is the Admin Control Plane.
type Plane struct {
	store       storage.Store
	scheduler   *scheduler.Scheduler
	claimEngine *claimengine.Engine
	monitor     *depositmonitor.Monitor
	log         *logger.Logger
}

// New builds a Plane. The three engine references are used only for
// one-shot trigger operations (TriggerJob); enable/disable state always
// lives in PlatformConfig, read fresh on every engine tick.
func New(store storage.Store, sched *scheduler.Scheduler, claims *claimengine.Engine, monitor *depositmonitor.Monitor) *Plane {
	return &Plane{
		store:       store,
		scheduler:   sched,
		claimEngine: claims,
		monitor:     monitor,
		log:         logger.NewDefault("admin-control-plane"),
	}
}

// ListJobs reports the enabled/disabled state of every toggleable job.
func (p *Plane) ListJobs(ctx context.Context) ([]JobStatus, error) {
	cfg, err := p.store.GetPlatformConfig(ctx)
	if err != nil {
		return nil, err
	}
	return []JobStatus{
		{Name: JobFastClaim, Enabled: cfg.FastClaimJobEnabled},
		{Name: JobMultiUserFlywheel, Enabled: cfg.MultiUserFlywheelEnabled},
		{Name: JobDepositMonitor, Enabled: cfg.DepositMonitorEnabled},
		{Name: JobBalanceUpdate, Enabled: cfg.BalanceUpdateJobEnabled},
	}, nil
}

// SetJobEnabled flips a job's enable flag in PlatformConfig.
func (p *Plane) SetJobEnabled(ctx context.Context, job JobName, enabled bool) error {
	cfg, err := p.store.GetPlatformConfig(ctx)
	if err != nil {
		return err
	}
	switch job {
	case JobFastClaim:
		cfg.FastClaimJobEnabled = enabled
	case JobMultiUserFlywheel:
		cfg.MultiUserFlywheelEnabled = enabled
	case JobDepositMonitor:
		cfg.DepositMonitorEnabled = enabled
	case JobBalanceUpdate:
		cfg.BalanceUpdateJobEnabled = enabled
	default:
		return fmt.Errorf("admin: unknown job %q", job)
	}
	p.log.WithField("job", job).WithField("enabled", enabled).Info("admin job toggle")
	return p.store.UpdatePlatformConfig(ctx, cfg)
}

// TriggerJob runs one out-of-cycle tick of the named job immediately,
// independent of its own ticker and independent of its enabled flag — an
// admin-initiated trigger always runs once, even against a disabled job.
func (p *Plane) TriggerJob(ctx context.Context, job JobName) error {
	p.log.WithField("job", job).Info("admin job manual trigger")
	switch job {
	case JobMultiUserFlywheel:
		if p.scheduler == nil {
			return fmt.Errorf("admin: scheduler not wired")
		}
		p.scheduler.Tick(ctx)
		return nil
	case JobFastClaim:
		if p.claimEngine == nil {
			return fmt.Errorf("admin: claim engine not wired")
		}
		p.claimEngine.Tick(ctx)
		return nil
	case JobDepositMonitor:
		if p.monitor == nil {
			return fmt.Errorf("admin: deposit monitor not wired")
		}
		p.monitor.Tick(ctx)
		return nil
	case JobBalanceUpdate:
		return fmt.Errorf("admin: balance update has no standalone trigger; it runs inside marketcache's refresher")
	default:
		return fmt.Errorf("admin: unknown job %q", job)
	}
}

// UpdatePlatformFee adjusts the platform's cut of non-platform-owned token
// claims. Accepts a fraction in [0, 1].
func (p *Plane) UpdatePlatformFee(ctx context.Context, fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("admin: platform fee fraction %v out of [0,1]", fraction)
	}
	cfg, err := p.store.GetPlatformConfig(ctx)
	if err != nil {
		return err
	}
	cfg.PlatformFeePercentage = fraction
	p.log.WithField("fraction", fraction).Info("admin platform fee updated")
	return p.store.UpdatePlatformConfig(ctx, cfg)
}

// UpdateClaimThresholdAmounts adjusts the two fast-claim thresholds named in
// PlatformConfig.
func (p *Plane) UpdateClaimThresholdAmounts(ctx context.Context, standard, platformOwned string) error {
	cfg, err := p.store.GetPlatformConfig(ctx)
	if err != nil {
		return err
	}
	stdAmt, err := numeric.FromString(standard)
	if err != nil {
		return err
	}
	platAmt, err := numeric.FromString(platformOwned)
	if err != nil {
		return err
	}
	cfg.FastClaimThreshold = stdAmt
	cfg.PlatformFastClaimThresh = platAmt
	p.log.WithField("standard_threshold", standard).WithField("platform_threshold", platformOwned).Info("admin claim thresholds updated")
	return p.store.UpdatePlatformConfig(ctx, cfg)
}

// UpdateMaxTradesPerMinute adjusts the fleet-wide trade budget (§5).
func (p *Plane) UpdateMaxTradesPerMinute(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("admin: max_trades_per_minute must be positive")
	}
	cfg, err := p.store.GetPlatformConfig(ctx)
	if err != nil {
		return err
	}
	cfg.MaxTradesPerMinute = n
	p.log.WithField("max_trades_per_minute", n).Info("admin trade budget updated")
	return p.store.UpdatePlatformConfig(ctx, cfg)
}

// UpsertTokenConfig applies a per-token config override, validating it
// before persisting (the same invariant the cycle machine itself enforces).
func (p *Plane) UpsertTokenConfig(ctx context.Context, cfg domain.TokenConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.log.WithField("token_id", cfg.TokenID).Info("admin token config override")
	return p.store.UpsertTokenConfig(ctx, cfg)
}

// SetTokenActive enables or disables a single token's flywheel participation
// without touching its stored config, for a quick admin kill-switch.
func (p *Plane) SetTokenActive(ctx context.Context, tokenID string, active bool) error {
	p.log.WithField("token_id", tokenID).WithField("active", active).Info("admin token active toggle")
	return p.store.SetTokenActive(ctx, tokenID, active)
}

// ReactivateSuspendedToken re-enables a token that was auto-suspended after
// repeated signer failures, once the admin (or owner) has re-verified wallet
// control.
func (p *Plane) ReactivateSuspendedToken(ctx context.Context, tokenID string, verify func(walletAddress string) bool) error {
	p.log.WithField("token_id", tokenID).Info("admin token reactivation")
	return p.store.ReactivateSuspended(ctx, tokenID, verify)
}

// WheelSnapshot is the §4.9 "GET /admin/wheel" read model: every active
// token's current cycle phase and last trade time, for an at-a-glance
// operational view of the whole fleet.
type WheelSnapshot struct {
	TokenID   string
	Symbol    string
	Phase     domain.CyclePhase
	BuyCount  int
	SellCount int
	UpdatedAt time.Time
}

// Wheel builds a fleet-wide snapshot across every registered token.
func (p *Plane) Wheel(ctx context.Context) ([]WheelSnapshot, error) {
	tokens, err := p.store.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	snapshots := make([]WheelSnapshot, 0, len(tokens))
	for _, t := range tokens {
		cycle, err := p.store.GetCycleState(ctx, t.ID)
		if err != nil {
			p.log.WithField("token_id", t.ID).WithError(err).Warn("failed to read cycle state for wheel snapshot")
			continue
		}
		snapshots = append(snapshots, WheelSnapshot{
			TokenID:   t.ID,
			Symbol:    t.Symbol,
			Phase:     cycle.Phase,
			BuyCount:  cycle.BuyCount,
			SellCount: cycle.SellCount,
			UpdatedAt: t.UpdatedAt,
		})
	}
	return snapshots, nil
}
