package strategy

import (
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
)

const (
	rebalanceAssetNative = "native"
	rebalanceAssetToken  = "token"

	// rebalanceDeadband avoids thrashing on tiny allocation drift; moves
	// smaller than this fraction of total portfolio value are skipped.
	rebalanceDeadband = 0.01
)

// Rebalance computes the current value(native):value(tokens) split (using
// prices supplied via Observed) and compares it against the configured
// target allocation, emitting a buy or sell sized to move halfway toward
// target in one step. It ignores the buy/sell phase counters entirely —
// the Cycle State Machine leaves them unused-but-persisted for
// rebalance-configured tokens (§4.6).
//
// The precise sizing formula is intentionally conservative: the reference
// system's rebalance algorithm is under-specified (§9 Open Questions), so
// this implementation moves the portfolio halfway to target per step rather
// than snapping to it in one trade, bounding how much a single mispriced
// observation can move the market.
type Rebalance struct{}

func (Rebalance) Step(cfg domain.TokenConfig, _ domain.CycleState, observed Observed) (TradeIntent, SkipReason) {
	targetNativePct, targetTokenPct, ok := rebalanceTargets(cfg.RebalanceTargets)
	if !ok {
		return TradeIntent{}, SkipNoneDue
	}

	nativeValue := observed.OpsNativeBalance.Mul(observed.NativePrice)
	tokenValue := observed.OpsTokenBalance.Mul(observed.TokenPrice)
	total := nativeValue.Add(tokenValue)
	if total.IsZero() {
		return TradeIntent{}, SkipInsufficientFunds
	}

	currentNativePct := nativeValue.Div(total).Float64() * 100
	drift := currentNativePct - targetNativePct
	if drift < 0 {
		drift = -drift
	}
	if drift < rebalanceDeadband*100 {
		return TradeIntent{}, SkipTooSmall
	}

	targetNativeValue := total.MulFloat(targetNativePct / 100)
	delta := nativeValue.Sub(targetNativeValue) // positive: too much native, sell native for token (buy token)
	moveValue := delta.MulFloat(0.5)            // halfway-to-target step

	if moveValue.IsNegative() {
		moveValue = moveValue.Mul(numeric.FromFloat(-1))
		// native underweight relative to target: sell token to acquire native.
		if observed.TokenPrice.IsZero() {
			return TradeIntent{}, SkipInsufficientFunds
		}
		tokenAmount := moveValue.Div(observed.TokenPrice)
		if tokenAmount.GreaterThan(observed.OpsTokenBalance) {
			tokenAmount = observed.OpsTokenBalance
		}
		_ = targetTokenPct
		return TradeIntent{Side: SideSell, Amount: tokenAmount}, ""
	}

	// native overweight relative to target: buy token with native.
	if moveValue.GreaterThan(observed.OpsNativeBalance) {
		moveValue = observed.OpsNativeBalance
	}
	return TradeIntent{Side: SideBuy, Amount: moveValue}, ""
}

func rebalanceTargets(targets []domain.RebalanceTarget) (nativePct, tokenPct float64, ok bool) {
	for _, t := range targets {
		switch t.Asset {
		case rebalanceAssetNative:
			nativePct = t.Percent
			ok = true
		case rebalanceAssetToken:
			tokenPct = t.Percent
		}
	}
	return nativePct, tokenPct, ok
}
