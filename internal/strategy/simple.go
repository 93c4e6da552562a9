package strategy

import (
	"github.com/solward/flywheel/internal/domain"
)

// Simple is the default algorithm: fixed cycle sizes (5/5 unless
// overridden), random uniform buy size within the configured bounds. The
// phase/count bookkeeping lives entirely in the Cycle State Machine; Simple
// only answers "how much to buy" when asked during the buy phase.
type Simple struct{}

// Step draws a uniform buy size when called during the buy phase. It is not
// invoked during the sell phase — the Cycle State Machine computes
// sell_size itself from the persisted sell_amount_per_tx, since that formula
// is identical across simple and turbo_lite (§4.5).
func (Simple) Step(cfg domain.TokenConfig, cycle domain.CycleState, _ Observed) (TradeIntent, SkipReason) {
	if cycle.Phase != domain.PhaseBuy {
		return TradeIntent{}, SkipNoneDue
	}
	size := randomUniform(cfg.MinBuyAmount, cfg.MaxBuyAmount)
	return TradeIntent{Side: SideBuy, Amount: size}, ""
}
