package postgres

import (
	"context"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/storage"
)

func (s *Store) GetTokenConfig(ctx context.Context, tokenID string) (domain.TokenConfig, error) {
	var cfg domain.TokenConfig
	var confirmMS int64
	var targetsJSON []byte
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT token_id, flywheel_active, auto_claim_enabled, algorithm,
			min_buy_amount, max_buy_amount, max_sell_amount, slippage_bps, rebalance_targets,
			cycle_size_buys, cycle_size_sells, job_interval_seconds, rate_limit_per_minute,
			inter_token_delay_ms, confirmation_timeout_ms, batch_updates
		FROM token_configs WHERE token_id = $1
	`, tokenID).Scan(
		&cfg.TokenID, &cfg.FlywheelActive, &cfg.AutoClaimEnabled, &cfg.Algorithm,
		&cfg.MinBuyAmount, &cfg.MaxBuyAmount, &cfg.MaxSellAmount, &cfg.SlippageBps, &targetsJSON,
		&cfg.CycleSizeBuys, &cfg.CycleSizeSells, &cfg.JobIntervalSeconds, &cfg.RateLimitPerMinute,
		&cfg.InterTokenDelayMS, &confirmMS, &cfg.BatchUpdates,
	)
	if isNoRows(err) {
		return domain.TokenConfig{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.TokenConfig{}, err
	}
	cfg.ConfirmationTimeout = msToDuration(confirmMS)
	targets, err := decodeRebalanceTargets(targetsJSON)
	if err != nil {
		return domain.TokenConfig{}, err
	}
	cfg.RebalanceTargets = targets
	return cfg, nil
}

func (s *Store) UpsertTokenConfig(ctx context.Context, cfg domain.TokenConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return insertTokenConfig(ctx, s.q(ctx), cfg)
}

func (s *Store) GetCycleState(ctx context.Context, tokenID string) (domain.CycleState, error) {
	var c domain.CycleState
	c.TokenID = tokenID
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT phase, buy_count, sell_count, sell_phase_token_snapshot, sell_amount_per_tx, consecutive_failures, last_attempt_at
		FROM cycle_states WHERE token_id = $1
	`, tokenID).Scan(&c.Phase, &c.BuyCount, &c.SellCount, &c.SellPhaseTokenSnapshot, &c.SellAmountPerTx, &c.ConsecutiveFailures, &c.LastAttemptAt)
	if isNoRows(err) {
		return domain.CycleState{}, storage.ErrNotFound
	}
	return c, err
}

func (s *Store) AdvanceCycle(ctx context.Context, tokenID string, update domain.CycleState) (domain.CycleState, error) {
	var out domain.CycleState
	out.TokenID = tokenID
	err := s.q(ctx).QueryRowContext(ctx, `
		UPDATE cycle_states SET
			phase = $2, buy_count = $3, sell_count = $4, sell_phase_token_snapshot = $5,
			sell_amount_per_tx = $6, consecutive_failures = $7, last_attempt_at = now()
		WHERE token_id = $1
		RETURNING phase, buy_count, sell_count, sell_phase_token_snapshot, sell_amount_per_tx, consecutive_failures, last_attempt_at
	`, tokenID, update.Phase, update.BuyCount, update.SellCount, update.SellPhaseTokenSnapshot,
		update.SellAmountPerTx, update.ConsecutiveFailures).
		Scan(&out.Phase, &out.BuyCount, &out.SellCount, &out.SellPhaseTokenSnapshot, &out.SellAmountPerTx, &out.ConsecutiveFailures, &out.LastAttemptAt)
	if isNoRows(err) {
		return domain.CycleState{}, storage.ErrNotFound
	}
	return out, err
}
