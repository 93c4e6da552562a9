// Package cycle implements the per-token Cycle State Machine (§4.5): the
// buy/sell automaton that alternates between cycle-sized phases, sizing
// trades via the configured Algorithm Strategy, submitting them through the
// Signer Gateway, and persisting every transition before any further RPC
// call for that token.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/solward/flywheel/internal/chain"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/signer"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/strategy"
	"github.com/solward/flywheel/internal/tradingsdk"
	"github.com/solward/flywheel/pkg/logger"
)

var (
	dustReserve      = numeric.FromFloat(0.01)
	sellBalanceFloor = numeric.FromInt(1)
	sellSizeFloor    = numeric.FromInt(1)
	sellCapFraction  = 0.30

	consecutiveFailureBreaker = 10
)

// Outcome reports what happened to one token during one scheduler step.
type Outcome struct {
	TokenID string
	Traded  bool
	Skipped strategy.SkipReason
	Paused  bool // soft circuit breaker: consecutive_failures >= 10
	Err     error
}

// Machine drives the cycle automaton for one token at a time. It holds no
// per-token state itself — everything persists through Store — so a single
// Machine instance is shared across the whole fleet.
type Machine struct {
	store     storage.Store
	cache     *marketcache.Cache
	gateway   *signer.Gateway
	amm       tradingsdk.AMM
	chainID   chain.ChainID
	strategies strategy.Registry
	log       *logger.Logger

	warnedCoercion map[string]bool
}

// New builds a Machine.
func New(store storage.Store, cache *marketcache.Cache, gateway *signer.Gateway, amm tradingsdk.AMM, chainID chain.ChainID, strategies strategy.Registry) *Machine {
	return &Machine{
		store:          store,
		cache:          cache,
		gateway:        gateway,
		amm:            amm,
		chainID:        chainID,
		strategies:     strategies,
		log:            logger.NewDefault("cycle-machine"),
		warnedCoercion: make(map[string]bool),
	}
}

// Step advances token by exactly one cycle step: one buy, one sell, or one
// rebalance/twap_vwap trade, or a skip. The caller (Fleet Scheduler) is
// responsible for the per-token non-blocking lock (§5); Step assumes it
// already holds it.
func (m *Machine) Step(ctx context.Context, st storage.SchedulableToken) Outcome {
	token, cfg, state := st.Token, st.Config, st.Cycle

	if state.ConsecutiveFailures >= consecutiveFailureBreaker {
		// Soft circuit breaker: pause for this tick only, do not disable.
		reset := state
		reset.ConsecutiveFailures = 0
		if _, err := m.store.AdvanceCycle(ctx, token.ID, reset); err != nil {
			m.log.WithField("token_id", token.ID).WithError(err).Warn("failed to reset breaker counter")
		}
		return Outcome{TokenID: token.ID, Paused: true}
	}

	cfg = coerceBounds(cfg, m.warnedCoercion, m.log)

	strat, ok := m.strategies[cfg.Algorithm]
	if !ok {
		return Outcome{TokenID: token.ID, Err: fmt.Errorf("cycle: no strategy registered for algorithm %q", cfg.Algorithm)}
	}

	switch cfg.Algorithm {
	case domain.AlgorithmRebalance, domain.AlgorithmTWAPVWAP:
		return m.stepFreeform(ctx, token, cfg, state, strat)
	default:
		return m.stepPhased(ctx, token, cfg, state, strat)
	}
}

// stepPhased drives the structured buy/sell automaton shared by simple and
// turbo_lite (§4.5).
func (m *Machine) stepPhased(ctx context.Context, token domain.Token, cfg domain.TokenConfig, state domain.CycleState, strat strategy.Strategy) Outcome {
	nativeBalance, err := m.cache.NativeBalance(ctx, m.chainID, token.OpsWallet)
	if err != nil {
		return Outcome{TokenID: token.ID, Err: err}
	}

	if cfg.Algorithm == domain.AlgorithmTurboLite && strategy.ShouldForceSell(state, nativeBalance) {
		return m.forceSellTransition(ctx, token, cfg, state)
	}

	switch state.Phase {
	case domain.PhaseBuy:
		return m.stepBuy(ctx, token, cfg, state, strat, nativeBalance)
	default:
		return m.stepSell(ctx, token, cfg, state)
	}
}

func (m *Machine) stepBuy(ctx context.Context, token domain.Token, cfg domain.TokenConfig, state domain.CycleState, strat strategy.Strategy, nativeBalance numeric.Amount) Outcome {
	if nativeBalance.LessThan(cfg.MinBuyAmount.Add(dustReserve)) {
		return Outcome{TokenID: token.ID, Skipped: strategy.SkipInsufficientFunds}
	}

	intent, skip := strat.Step(cfg, state, strategy.Observed{OpsNativeBalance: nativeBalance})
	if skip != "" {
		return Outcome{TokenID: token.ID, Skipped: skip}
	}

	trade, err := m.submitSwap(ctx, token, domain.SideBuy, intent.Amount, cfg.SlippageBps)
	if err != nil {
		m.recordFailure(ctx, token.ID, state)
		return Outcome{TokenID: token.ID, Err: err}
	}
	if err := m.store.RecordTrade(ctx, trade); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to record confirmed buy trade")
	}
	m.cache.InvalidateNative(token.OpsWallet)
	m.cache.Invalidate(token.OpsWallet, token.Mint)

	next := state
	next.BuyCount++
	next.ConsecutiveFailures = 0

	if next.BuyCount >= cfg.CycleSizeBuys {
		snapshot, err := m.cache.TokenBalance(ctx, m.chainID, token.OpsWallet, token.Mint)
		if err != nil {
			snapshot = numeric.Zero()
		}
		next.Phase = domain.PhaseSell
		next.SellPhaseTokenSnapshot = snapshot
		next.SellAmountPerTx = snapshot.Div(numeric.FromInt(int64(cfg.CycleSizeSells)))
		next.BuyCount = 0
		next.SellCount = 0
	}

	if _, err := m.store.AdvanceCycle(ctx, token.ID, next); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to persist cycle advance after confirmed buy")
	}
	return Outcome{TokenID: token.ID, Traded: true}
}

func (m *Machine) stepSell(ctx context.Context, token domain.Token, cfg domain.TokenConfig, state domain.CycleState) Outcome {
	tokenBalance, err := m.cache.TokenBalance(ctx, m.chainID, token.OpsWallet, token.Mint)
	if err != nil {
		return Outcome{TokenID: token.ID, Err: err}
	}

	if tokenBalance.LessThan(sellBalanceFloor) {
		reset := domain.NewCycleState(token.ID)
		reset.Phase = domain.PhaseBuy
		if _, err := m.store.AdvanceCycle(ctx, token.ID, reset); err != nil {
			m.log.WithField("token_id", token.ID).WithError(err).Error("failed to persist degenerate sell->buy reset")
		}
		return Outcome{TokenID: token.ID, Skipped: strategy.SkipNoTokens}
	}

	sellCap := tokenBalance.MulFloat(sellCapFraction)
	sellSize := state.SellAmountPerTx
	if sellCap.LessThan(sellSize) {
		sellSize = sellCap
	}
	if sellSize.LessThan(sellSizeFloor) {
		reset := domain.NewCycleState(token.ID)
		reset.Phase = domain.PhaseBuy
		if _, err := m.store.AdvanceCycle(ctx, token.ID, reset); err != nil {
			m.log.WithField("token_id", token.ID).WithError(err).Error("failed to persist too-small sell->buy reset")
		}
		return Outcome{TokenID: token.ID, Skipped: strategy.SkipTooSmall}
	}

	trade, err := m.submitSwap(ctx, token, domain.SideSell, sellSize, cfg.SlippageBps)
	if err != nil {
		m.recordFailure(ctx, token.ID, state)
		return Outcome{TokenID: token.ID, Err: err}
	}
	if err := m.store.RecordTrade(ctx, trade); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to record confirmed sell trade")
	}
	m.cache.InvalidateNative(token.OpsWallet)
	m.cache.Invalidate(token.OpsWallet, token.Mint)

	next := state
	next.SellCount++
	next.ConsecutiveFailures = 0
	if next.SellCount >= cfg.CycleSizeSells {
		next = domain.NewCycleState(token.ID)
		next.Phase = domain.PhaseBuy
	}
	if _, err := m.store.AdvanceCycle(ctx, token.ID, next); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to persist cycle advance after confirmed sell")
	}
	return Outcome{TokenID: token.ID, Traded: true}
}

// forceSellTransition implements the turbo_lite edge case: native balance
// below the floor while in buy phase forces an immediate transition to sell
// phase, snapshotting the current token balance, with no buy submitted this
// tick (§4.5, §8 scenario 5).
func (m *Machine) forceSellTransition(ctx context.Context, token domain.Token, cfg domain.TokenConfig, state domain.CycleState) Outcome {
	snapshot, err := m.cache.TokenBalance(ctx, m.chainID, token.OpsWallet, token.Mint)
	if err != nil {
		snapshot = numeric.Zero()
	}
	next := state
	next.Phase = domain.PhaseSell
	next.SellPhaseTokenSnapshot = snapshot
	next.SellAmountPerTx = snapshot.Div(numeric.FromInt(int64(cfg.CycleSizeSells)))
	next.BuyCount = 0
	next.SellCount = 0
	if _, err := m.store.AdvanceCycle(ctx, token.ID, next); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to persist turbo_lite force-sell transition")
	}
	return Outcome{TokenID: token.ID, Skipped: strategy.SkipNoneDue}
}

// stepFreeform drives rebalance/twap_vwap tokens, which ignore the buy/sell
// counters (they remain persisted but unused, per §4.6).
func (m *Machine) stepFreeform(ctx context.Context, token domain.Token, cfg domain.TokenConfig, state domain.CycleState, strat strategy.Strategy) Outcome {
	nativeBalance, err := m.cache.NativeBalance(ctx, m.chainID, token.OpsWallet)
	if err != nil {
		return Outcome{TokenID: token.ID, Err: err}
	}
	tokenBalance, err := m.cache.TokenBalance(ctx, m.chainID, token.OpsWallet, token.Mint)
	if err != nil {
		return Outcome{TokenID: token.ID, Err: err}
	}

	observed := strategy.Observed{OpsNativeBalance: nativeBalance, OpsTokenBalance: tokenBalance}
	if cfg.Algorithm == domain.AlgorithmRebalance {
		nativePrice, err := m.cache.Price(ctx, "native")
		if err == nil {
			observed.NativePrice = nativePrice
		}
		tokenPrice, err := m.cache.Price(ctx, token.Mint)
		if err == nil {
			observed.TokenPrice = tokenPrice
		}
	}

	intent, skip := strat.Step(cfg, state, observed)
	if skip != "" {
		return Outcome{TokenID: token.ID, Skipped: skip}
	}

	side := domain.SideBuy
	if intent.Side == strategy.SideSell {
		side = domain.SideSell
	}
	trade, err := m.submitSwap(ctx, token, side, intent.Amount, cfg.SlippageBps)
	if err != nil {
		m.recordFailure(ctx, token.ID, state)
		return Outcome{TokenID: token.ID, Err: err}
	}
	if err := m.store.RecordTrade(ctx, trade); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to record confirmed freeform trade")
	}
	m.cache.InvalidateNative(token.OpsWallet)
	m.cache.Invalidate(token.OpsWallet, token.Mint)

	// Counters are untouched but ConsecutiveFailures still resets on success.
	reset := state
	reset.ConsecutiveFailures = 0
	if _, err := m.store.AdvanceCycle(ctx, token.ID, reset); err != nil {
		m.log.WithField("token_id", token.ID).WithError(err).Error("failed to persist freeform failure-counter reset")
	}
	return Outcome{TokenID: token.ID, Traded: true}
}

func (m *Machine) recordFailure(ctx context.Context, tokenID string, state domain.CycleState) {
	next := state
	next.ConsecutiveFailures++
	if _, err := m.store.AdvanceCycle(ctx, tokenID, next); err != nil {
		m.log.WithField("token_id", tokenID).WithError(err).Error("failed to persist failure counter increment")
	}
}

// submitSwap quotes, builds, and submits one swap leg, returning the Trade
// row to record on confirmation. On any failure it returns a failed Trade's
// worth of context as an error; the caller records the failure counter
// increment, not a Trade row (only confirmed/attempted-and-failed legs with
// a submission worth logging get a row, via RecordTrade below).
func (m *Machine) submitSwap(ctx context.Context, token domain.Token, side domain.TradeSide, amount numeric.Amount, slippageBps int) (domain.Trade, error) {
	inMint, outMint := "native", token.Mint
	if side == domain.SideSell {
		inMint, outMint = token.Mint, "native"
	}

	quote, err := m.amm.Quote(ctx, inMint, outMint, amount, slippageBps)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("simulation_failed: quote: %w", err)
	}
	unsigned, err := m.amm.BuildSwap(ctx, quote, token.OpsWallet)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("simulation_failed: build swap: %w", err)
	}

	result, err := m.gateway.Submit(ctx, signer.Wallet{Address: token.OpsWallet, SignerHandle: token.OpsWallet}, unsigned, signer.SubmitOptions{
		Chain:     m.chainID,
		TokenID:   token.ID,
		Operation: string(side),
	})
	if err != nil {
		return domain.Trade{}, err
	}

	return domain.Trade{
		TokenID:   token.ID,
		Side:      side,
		Amount:    amount,
		Signature: result.Signature,
		Status:    domain.TradeConfirmed,
		At:        time.Now().UTC(),
	}, nil
}

// coerceBounds implements the "min_buy_amount > max_buy_amount coerces to
// min" edge case, logging a warning exactly once per token (§4.5).
func coerceBounds(cfg domain.TokenConfig, warned map[string]bool, log *logger.Logger) domain.TokenConfig {
	if cfg.MinBuyAmount.GreaterThan(cfg.MaxBuyAmount) {
		if !warned[cfg.TokenID] {
			log.WithField("token_id", cfg.TokenID).Warn("min_buy_amount exceeds max_buy_amount; coercing to min")
			warned[cfg.TokenID] = true
		}
		cfg.MaxBuyAmount = cfg.MinBuyAmount
	}
	return cfg
}
