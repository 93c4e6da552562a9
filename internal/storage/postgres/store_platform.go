package postgres

import (
	"context"

	"github.com/solward/flywheel/internal/domain"
)

func (s *Store) GetPlatformConfig(ctx context.Context) (domain.PlatformConfig, error) {
	var cfg domain.PlatformConfig
	var claimPeriodMS int64
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT fast_claim_job_enabled, multi_user_flywheel_enabled, deposit_monitor_enabled, balance_update_job_enabled,
			fast_claim_threshold, platform_fast_claim_thresh, claim_job_period_ms, platform_fee_percentage,
			platform_self_trade_min_size, platform_self_trade_max_size, max_trades_per_minute, reserve_amount
		FROM platform_config WHERE id = true
	`).Scan(
		&cfg.FastClaimJobEnabled, &cfg.MultiUserFlywheelEnabled, &cfg.DepositMonitorEnabled, &cfg.BalanceUpdateJobEnabled,
		&cfg.FastClaimThreshold, &cfg.PlatformFastClaimThresh, &claimPeriodMS, &cfg.PlatformFeePercentage,
		&cfg.PlatformSelfTradeMinSize, &cfg.PlatformSelfTradeMaxSize, &cfg.MaxTradesPerMinute, &cfg.ReserveAmount,
	)
	if err != nil {
		return domain.PlatformConfig{}, err
	}
	cfg.ClaimJobPeriod = msToDuration(claimPeriodMS)
	return cfg, nil
}

func (s *Store) UpdatePlatformConfig(ctx context.Context, cfg domain.PlatformConfig) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE platform_config SET
			fast_claim_job_enabled = $1, multi_user_flywheel_enabled = $2, deposit_monitor_enabled = $3,
			balance_update_job_enabled = $4, fast_claim_threshold = $5, platform_fast_claim_thresh = $6,
			claim_job_period_ms = $7, platform_fee_percentage = $8, platform_self_trade_min_size = $9,
			platform_self_trade_max_size = $10, max_trades_per_minute = $11, reserve_amount = $12
		WHERE id = true
	`, cfg.FastClaimJobEnabled, cfg.MultiUserFlywheelEnabled, cfg.DepositMonitorEnabled, cfg.BalanceUpdateJobEnabled,
		cfg.FastClaimThreshold, cfg.PlatformFastClaimThresh, durationToMS(cfg.ClaimJobPeriod), cfg.PlatformFeePercentage,
		cfg.PlatformSelfTradeMinSize, cfg.PlatformSelfTradeMaxSize, cfg.MaxTradesPerMinute, cfg.ReserveAmount)
	return err
}
