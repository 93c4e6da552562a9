// Package strategy implements the pluggable trade-sizing/timing policies
// consumed by the Cycle State Machine (§4.6). Every Strategy is a pure
// function of (config, cycle state, observed on-chain state); none perform
// I/O themselves — the scheduler supplies the observed state.
package strategy

import (
	"math/rand"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
)

// Observed carries the on-chain reads the scheduler already took this tick,
// so strategies never need to perform their own I/O.
type Observed struct {
	OpsNativeBalance numeric.Amount
	OpsTokenBalance  numeric.Amount
	NativePrice      numeric.Amount // native-asset price in USD, for rebalance
	TokenPrice       numeric.Amount // token price in USD, for rebalance
}

// Side distinguishes a buy intent from a sell intent.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeIntent is what a Strategy emits when it wants the scheduler to submit
// a swap. Amount is denominated in the asset being spent (native for buys,
// token for sells).
type TradeIntent struct {
	Side   Side
	Amount numeric.Amount
}

// SkipReason enumerates why a step produced no trade.
type SkipReason string

const (
	SkipInsufficientFunds SkipReason = "insufficient_funds"
	SkipNoTokens          SkipReason = "no_tokens"
	SkipTooSmall          SkipReason = "too_small"
	SkipNoneDue           SkipReason = "none_due"
)

// Strategy is implemented once per domain.Algorithm.
type Strategy interface {
	// Step computes the next trade intent (or skip reason) for one token,
	// given its config, its current cycle state, and this tick's observed
	// on-chain reads. It does not mutate cycleState; the caller (the Cycle
	// State Machine) owns persistence of any resulting transition.
	Step(cfg domain.TokenConfig, cycle domain.CycleState, observed Observed) (TradeIntent, SkipReason)
}

// Registry resolves a Strategy implementation by algorithm name.
type Registry map[domain.Algorithm]Strategy

// DefaultRegistry wires the four named algorithms (§4.6).
func DefaultRegistry() Registry {
	return Registry{
		domain.AlgorithmSimple:    Simple{},
		domain.AlgorithmTurboLite: TurboLite{},
		domain.AlgorithmRebalance: Rebalance{},
		domain.AlgorithmTWAPVWAP:  TWAPVWAP{},
	}
}

// randomUniform draws a uniform amount in [min, max]. Falls back to min if
// the range is empty or inverted (the cycle machine's edge-case coercion in
// §4.5 is expected to have already fixed min>max upstream; this is a
// defensive floor, not the coercion point itself).
func randomUniform(min, max numeric.Amount) numeric.Amount {
	if !max.GreaterThan(min) {
		return min
	}
	span := max.Sub(min)
	frac := rand.Float64()
	return min.Add(span.MulFloat(frac))
}
