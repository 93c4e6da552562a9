package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/storage"
)

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func msToDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
func durationToMS(d time.Duration) int64  { return d.Milliseconds() }

type rebalanceTargetWire struct {
	Asset   string  `json:"asset"`
	Percent float64 `json:"percent"`
}

func encodeRebalanceTargets(targets []domain.RebalanceTarget) ([]byte, error) {
	wire := make([]rebalanceTargetWire, 0, len(targets))
	for _, t := range targets {
		wire = append(wire, rebalanceTargetWire{Asset: t.Asset, Percent: t.Percent})
	}
	return json.Marshal(wire)
}

func decodeRebalanceTargets(raw []byte) ([]domain.RebalanceTarget, error) {
	var wire []rebalanceTargetWire
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.RebalanceTarget, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.RebalanceTarget{Asset: w.Asset, Percent: w.Percent})
	}
	return out, nil
}

// activationPayloadWire is the JSON-serialisable mirror of
// domain.ActivationPayload; TokenConfig's numeric.Amount fields round-trip
// through their own decimal-string encoding via json.Marshaler on Amount's
// underlying type being unavailable, so they're flattened to strings here.
type activationPayloadWire struct {
	OwnerID   string              `json:"owner_id"`
	Mint      string              `json:"mint"`
	Symbol    string              `json:"symbol"`
	Decimals  int                 `json:"decimals"`
	Source    domain.TokenSource  `json:"source"`
	DevWallet string              `json:"dev_wallet"`
	OpsWallet string              `json:"ops_wallet"`
	Config    tokenConfigWire     `json:"config"`
}

type tokenConfigWire struct {
	FlywheelActive      bool                    `json:"flywheel_active"`
	AutoClaimEnabled    bool                    `json:"auto_claim_enabled"`
	Algorithm           domain.Algorithm        `json:"algorithm"`
	MinBuyAmount        string                  `json:"min_buy_amount"`
	MaxBuyAmount        string                  `json:"max_buy_amount"`
	MaxSellAmount       string                  `json:"max_sell_amount"`
	SlippageBps         int                     `json:"slippage_bps"`
	RebalanceTargets    []rebalanceTargetWire   `json:"rebalance_targets"`
	CycleSizeBuys       int                     `json:"cycle_size_buys"`
	CycleSizeSells      int                     `json:"cycle_size_sells"`
	JobIntervalSeconds  int                     `json:"job_interval_seconds"`
	RateLimitPerMinute  int                     `json:"rate_limit_per_minute"`
	InterTokenDelayMS   int                     `json:"inter_token_delay_ms"`
	ConfirmationTimeoutMS int64                 `json:"confirmation_timeout_ms"`
	BatchUpdates        bool                    `json:"batch_updates"`
}

func encodeActivationPayload(p domain.ActivationPayload) ([]byte, error) {
	targets := make([]rebalanceTargetWire, 0, len(p.Config.RebalanceTargets))
	for _, t := range p.Config.RebalanceTargets {
		targets = append(targets, rebalanceTargetWire{Asset: t.Asset, Percent: t.Percent})
	}
	wire := activationPayloadWire{
		OwnerID: p.OwnerID, Mint: p.Mint, Symbol: p.Symbol, Decimals: p.Decimals,
		Source: p.Source, DevWallet: p.DevWallet, OpsWallet: p.OpsWallet,
		Config: tokenConfigWire{
			FlywheelActive: p.Config.FlywheelActive, AutoClaimEnabled: p.Config.AutoClaimEnabled,
			Algorithm: p.Config.Algorithm,
			MinBuyAmount: p.Config.MinBuyAmount.String(), MaxBuyAmount: p.Config.MaxBuyAmount.String(),
			MaxSellAmount: p.Config.MaxSellAmount.String(), SlippageBps: p.Config.SlippageBps,
			RebalanceTargets: targets, CycleSizeBuys: p.Config.CycleSizeBuys, CycleSizeSells: p.Config.CycleSizeSells,
			JobIntervalSeconds: p.Config.JobIntervalSeconds, RateLimitPerMinute: p.Config.RateLimitPerMinute,
			InterTokenDelayMS: p.Config.InterTokenDelayMS, ConfirmationTimeoutMS: durationToMS(p.Config.ConfirmationTimeout),
			BatchUpdates: p.Config.BatchUpdates,
		},
	}
	return json.Marshal(wire)
}

func decodeActivationPayload(raw []byte) (domain.ActivationPayload, error) {
	var wire activationPayloadWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.ActivationPayload{}, err
	}
	minBuy, err := numeric.FromString(wire.Config.MinBuyAmount)
	if err != nil {
		return domain.ActivationPayload{}, err
	}
	maxBuy, err := numeric.FromString(wire.Config.MaxBuyAmount)
	if err != nil {
		return domain.ActivationPayload{}, err
	}
	maxSell, err := numeric.FromString(wire.Config.MaxSellAmount)
	if err != nil {
		return domain.ActivationPayload{}, err
	}
	targets := make([]domain.RebalanceTarget, 0, len(wire.Config.RebalanceTargets))
	for _, t := range wire.Config.RebalanceTargets {
		targets = append(targets, domain.RebalanceTarget{Asset: t.Asset, Percent: t.Percent})
	}
	return domain.ActivationPayload{
		OwnerID: wire.OwnerID, Mint: wire.Mint, Symbol: wire.Symbol, Decimals: wire.Decimals,
		Source: wire.Source, DevWallet: wire.DevWallet, OpsWallet: wire.OpsWallet,
		Config: domain.TokenConfig{
			FlywheelActive: wire.Config.FlywheelActive, AutoClaimEnabled: wire.Config.AutoClaimEnabled,
			Algorithm: wire.Config.Algorithm, MinBuyAmount: minBuy, MaxBuyAmount: maxBuy, MaxSellAmount: maxSell,
			SlippageBps: wire.Config.SlippageBps, RebalanceTargets: targets,
			CycleSizeBuys: wire.Config.CycleSizeBuys, CycleSizeSells: wire.Config.CycleSizeSells,
			JobIntervalSeconds: wire.Config.JobIntervalSeconds, RateLimitPerMinute: wire.Config.RateLimitPerMinute,
			InterTokenDelayMS: wire.Config.InterTokenDelayMS, ConfirmationTimeout: msToDuration(wire.Config.ConfirmationTimeoutMS),
			BatchUpdates: wire.Config.BatchUpdates,
		},
	}, nil
}

func insertTokenConfig(ctx context.Context, q storage.Querier, cfg domain.TokenConfig) error {
	targetsJSON, err := encodeRebalanceTargets(cfg.RebalanceTargets)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO token_configs (
			token_id, flywheel_active, auto_claim_enabled, algorithm,
			min_buy_amount, max_buy_amount, max_sell_amount, slippage_bps, rebalance_targets,
			cycle_size_buys, cycle_size_sells, job_interval_seconds, rate_limit_per_minute,
			inter_token_delay_ms, confirmation_timeout_ms, batch_updates
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (token_id) DO UPDATE SET
			flywheel_active = EXCLUDED.flywheel_active, auto_claim_enabled = EXCLUDED.auto_claim_enabled,
			algorithm = EXCLUDED.algorithm, min_buy_amount = EXCLUDED.min_buy_amount,
			max_buy_amount = EXCLUDED.max_buy_amount, max_sell_amount = EXCLUDED.max_sell_amount,
			slippage_bps = EXCLUDED.slippage_bps, rebalance_targets = EXCLUDED.rebalance_targets,
			cycle_size_buys = EXCLUDED.cycle_size_buys, cycle_size_sells = EXCLUDED.cycle_size_sells,
			job_interval_seconds = EXCLUDED.job_interval_seconds, rate_limit_per_minute = EXCLUDED.rate_limit_per_minute,
			inter_token_delay_ms = EXCLUDED.inter_token_delay_ms, confirmation_timeout_ms = EXCLUDED.confirmation_timeout_ms,
			batch_updates = EXCLUDED.batch_updates
	`, cfg.TokenID, cfg.FlywheelActive, cfg.AutoClaimEnabled, cfg.Algorithm,
		cfg.MinBuyAmount, cfg.MaxBuyAmount, cfg.MaxSellAmount, cfg.SlippageBps, targetsJSON,
		cfg.CycleSizeBuys, cfg.CycleSizeSells, cfg.JobIntervalSeconds, cfg.RateLimitPerMinute,
		cfg.InterTokenDelayMS, durationToMS(cfg.ConfirmationTimeout), cfg.BatchUpdates)
	return err
}
