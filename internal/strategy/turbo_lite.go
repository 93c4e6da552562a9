package strategy

import (
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
)

// forceSellNativeFloor is the native-balance threshold below which turbo_lite
// forces a buy-phase token into sell phase regardless of buy_count (§4.5).
var forceSellNativeFloor = numeric.FromFloat(0.1)

// TurboLite shares the simple algorithm's buy/sell phase structure but runs
// on a tighter scheduler period with larger default cycle sizes, its own
// global rate-limit, and owns the "native balance too low → force sell"
// edge case.
type TurboLite struct{}

// Step mirrors Simple's buy-phase sizing; the force-sell edge case is
// evaluated by the Cycle State Machine (it needs to mutate phase/snapshot
// state that Strategy implementations never touch), via ShouldForceSell.
func (TurboLite) Step(cfg domain.TokenConfig, cycle domain.CycleState, _ Observed) (TradeIntent, SkipReason) {
	if cycle.Phase != domain.PhaseBuy {
		return TradeIntent{}, SkipNoneDue
	}
	size := randomUniform(cfg.MinBuyAmount, cfg.MaxBuyAmount)
	return TradeIntent{Side: SideBuy, Amount: size}, ""
}

// ShouldForceSell reports whether the turbo_lite "SOL-low force-sell"
// condition (§4.5, §8 scenario 5) is met: in buy phase with the ops
// wallet's native balance below the floor.
func ShouldForceSell(cycle domain.CycleState, nativeBalance numeric.Amount) bool {
	return cycle.Phase == domain.PhaseBuy && nativeBalance.LessThan(forceSellNativeFloor)
}

// TurboLiteDefaults returns the turbo_lite cycle-size defaults named in §8
// scenario 6 (8 buys / 8 sells), sourced from the same per-algorithm default
// config the activation handler uses so the two never drift apart.
func TurboLiteDefaults() (cycleSizeBuys, cycleSizeSells int) {
	cfg := domain.DefaultTokenConfigFor("", domain.AlgorithmTurboLite)
	return cfg.CycleSizeBuys, cfg.CycleSizeSells
}
