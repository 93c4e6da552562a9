package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/storage/memory"
)

func TestSetJobEnabledPersistsToPlatformConfig(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	require.NoError(t, plane.SetJobEnabled(context.Background(), JobFastClaim, false))

	jobs, err := plane.ListJobs(context.Background())
	require.NoError(t, err)
	found := false
	for _, j := range jobs {
		if j.Name == JobFastClaim {
			found = true
			assert.False(t, j.Enabled)
		}
	}
	assert.True(t, found)
}

func TestSetJobEnabledRejectsUnknownJob(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	err := plane.SetJobEnabled(context.Background(), JobName("bogus"), true)
	assert.Error(t, err)
}

func TestTriggerJobFailsCleanlyWhenEngineNotWired(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	err := plane.TriggerJob(context.Background(), JobFastClaim)
	assert.Error(t, err)
}

func TestUpdatePlatformFeeRejectsOutOfRangeFraction(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	assert.Error(t, plane.UpdatePlatformFee(context.Background(), 1.5))
	assert.Error(t, plane.UpdatePlatformFee(context.Background(), -0.1))
	assert.NoError(t, plane.UpdatePlatformFee(context.Background(), 0.2))

	cfg, err := store.GetPlatformConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.PlatformFeePercentage)
}

func TestUpdateClaimThresholdAmountsParsesAndPersists(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	require.NoError(t, plane.UpdateClaimThresholdAmounts(context.Background(), "0.5", "2"))

	cfg, err := store.GetPlatformConfig(context.Background())
	require.NoError(t, err)
	want1, err := numeric.FromString("0.5")
	require.NoError(t, err)
	want2, err := numeric.FromString("2")
	require.NoError(t, err)
	assert.Zero(t, cfg.FastClaimThreshold.Cmp(want1))
	assert.Zero(t, cfg.PlatformFastClaimThresh.Cmp(want2))
}

func TestUpdateMaxTradesPerMinuteRejectsNonPositive(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	assert.Error(t, plane.UpdateMaxTradesPerMinute(context.Background(), 0))
	assert.NoError(t, plane.UpdateMaxTradesPerMinute(context.Background(), 45))

	cfg, err := store.GetPlatformConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.MaxTradesPerMinute)
}

func TestUpsertTokenConfigRejectsInvalidRebalanceTargets(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	cfg := domain.DefaultTokenConfigFor("tok-1", domain.AlgorithmRebalance)
	cfg.RebalanceTargets = []domain.RebalanceTarget{{Percent: 40}, {Percent: 40}}

	err := plane.UpsertTokenConfig(context.Background(), cfg)
	assert.Error(t, err, "rebalance targets summing to 80 percent must be rejected")
}

func TestWheelReportsPhaseAndCountsForEachToken(t *testing.T) {
	store := memory.New()
	plane := New(store, nil, nil, nil)

	store.PutToken(domain.Token{ID: "tok-1", Mint: "MINT", Symbol: "TEST", Active: true})
	cycle := domain.NewCycleState("tok-1")
	cycle.BuyCount = 3
	store.PutCycleState(cycle)

	snapshots, err := plane.Wheel(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "tok-1", snapshots[0].TokenID)
	assert.Equal(t, domain.PhaseBuy, snapshots[0].Phase)
	assert.Equal(t, 3, snapshots[0].BuyCount)
}
