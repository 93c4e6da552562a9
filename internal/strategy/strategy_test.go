package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
)

func TestDefaultRegistryCoversAllAlgorithms(t *testing.T) {
	reg := DefaultRegistry()
	for _, alg := range []domain.Algorithm{
		domain.AlgorithmSimple, domain.AlgorithmTurboLite, domain.AlgorithmRebalance, domain.AlgorithmTWAPVWAP,
	} {
		_, ok := reg[alg]
		assert.True(t, ok, "missing strategy for algorithm %q", alg)
	}
}

func TestSimpleStepBuyPhaseWithinBounds(t *testing.T) {
	cfg := domain.TokenConfig{
		MinBuyAmount: numeric.FromFloat(0.01),
		MaxBuyAmount: numeric.FromFloat(0.05),
	}
	cycle := domain.CycleState{Phase: domain.PhaseBuy}

	for i := 0; i < 50; i++ {
		intent, reason := Simple{}.Step(cfg, cycle, Observed{})
		require.Empty(t, reason)
		assert.Equal(t, SideBuy, intent.Side)
		assert.False(t, intent.Amount.LessThan(cfg.MinBuyAmount), "amount must be >= min")
		assert.False(t, intent.Amount.GreaterThan(cfg.MaxBuyAmount), "amount must be <= max")
	}
}

func TestSimpleStepSellPhaseSkips(t *testing.T) {
	cfg := domain.TokenConfig{MinBuyAmount: numeric.FromFloat(0.01), MaxBuyAmount: numeric.FromFloat(0.05)}
	cycle := domain.CycleState{Phase: domain.PhaseSell}

	intent, reason := Simple{}.Step(cfg, cycle, Observed{})
	assert.Equal(t, SkipNoneDue, reason)
	assert.Equal(t, TradeIntent{}, intent)
}

func TestTurboLiteShouldForceSell(t *testing.T) {
	buy := domain.CycleState{Phase: domain.PhaseBuy}
	sell := domain.CycleState{Phase: domain.PhaseSell}

	assert.True(t, ShouldForceSell(buy, numeric.FromFloat(0.01)), "low native balance in buy phase must force sell")
	assert.False(t, ShouldForceSell(buy, numeric.FromFloat(1.0)), "ample native balance must not force sell")
	assert.False(t, ShouldForceSell(sell, numeric.FromFloat(0.01)), "already in sell phase is not a force-sell transition")
}

func TestTurboLiteDefaults(t *testing.T) {
	buys, sells := TurboLiteDefaults()
	assert.Equal(t, 8, buys)
	assert.Equal(t, 8, sells)
}

func TestRandomUniformHandlesInvertedRange(t *testing.T) {
	min := numeric.FromFloat(0.05)
	max := numeric.FromFloat(0.01)
	got := randomUniform(min, max)
	assert.Zero(t, got.Cmp(min), "inverted range should fall back to min")
}
