package strategy

import (
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
)

// TWAPVWAP is reserved for the platform's own self-trading path (§4.6); user
// tokens never configure it. It splits a notional target into smaller,
// evenly time-weighted slices rather than a single resized trade, which
// keeps the platform's own market-making activity from showing up as one
// large print per tick.
type TWAPVWAP struct {
	// SliceCount bounds how many ticks a single notional target is spread
	// across. Exported so the platform self-trade wiring can override it;
	// zero means DefaultSliceCount.
	SliceCount int
}

// DefaultSliceCount is used when SliceCount is unset.
const DefaultSliceCount = 10

// Step slices cfg.MaxBuyAmount (the configured notional ceiling for this
// tick's self-trade bound) into SliceCount even pieces and emits one slice
// per call. Direction alternates on buy/sell phase exactly like Simple,
// since a TWAP schedule only changes trade timing/sizing, not which side of
// the book the platform is on.
func (s TWAPVWAP) Step(cfg domain.TokenConfig, cycle domain.CycleState, _ Observed) (TradeIntent, SkipReason) {
	slices := s.SliceCount
	if slices <= 0 {
		slices = DefaultSliceCount
	}

	if cycle.Phase != domain.PhaseBuy {
		return TradeIntent{}, SkipNoneDue
	}

	notional := cfg.MaxBuyAmount
	if notional.IsZero() {
		return TradeIntent{}, SkipInsufficientFunds
	}
	slice := notional.Div(numeric.FromInt(int64(slices)))
	if slice.LessThan(cfg.MinBuyAmount) {
		slice = cfg.MinBuyAmount
	}
	return TradeIntent{Side: SideBuy, Amount: slice}, ""
}
