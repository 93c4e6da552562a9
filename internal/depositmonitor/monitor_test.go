package depositmonitor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/chain"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/storage/memory"
)

type fakeRPC struct {
	chain.RPCDriver
	nativeLamports int64
}

func (f *fakeRPC) GetBalance(ctx context.Context, _ chain.ChainID, _ string) (*big.Int, error) {
	return big.NewInt(f.nativeLamports), nil
}

type fakeNotifier struct {
	activated []string
	expired   []string
}

func (f *fakeNotifier) NotifyActivated(ctx context.Context, ownerID, tokenID string) error {
	f.activated = append(f.activated, tokenID)
	return nil
}

func (f *fakeNotifier) NotifyExpired(ctx context.Context, ownerID, pendingID string) error {
	f.expired = append(f.expired, pendingID)
	return nil
}

func newTestMonitor(store *memory.Store, rpc *fakeRPC, notifier Notifier) *Monitor {
	cache := marketcache.New(rpc, nil)
	return New(Config{Store: store, Cache: cache, ChainID: chain.ChainSolana, Notifier: notifier})
}

func seedPending(t *testing.T, store *memory.Store, expiresAt time.Time, minAmount numeric.Amount) domain.PendingActivation {
	t.Helper()
	p := domain.PendingActivation{
		ID:                     "pend-1",
		Kind:                   domain.PendingKindLaunch,
		ExpectedDepositAddress: "deposit-addr",
		MinAmount:              minAmount,
		ExpiresAt:              expiresAt,
		Status:                 domain.PendingAwaitingDeposit,
		Payload: domain.ActivationPayload{
			OwnerID: "owner-1",
			Mint:    "MINT",
			Symbol:  "TEST",
		},
	}
	require.NoError(t, store.CreatePendingActivation(context.Background(), p))
	return p
}

func TestTickActivatesOnceDepositClears(t *testing.T) {
	store := memory.New()
	seedPending(t, store, time.Now().Add(time.Hour), numeric.FromFloat(1))

	rpc := &fakeRPC{nativeLamports: 2_000_000_000} // well above a 1-native-unit minimum
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, rpc, notifier)

	m.Tick(context.Background())

	p, err := store.GetPendingActivation(context.Background(), "pend-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingActivated, p.Status)
	assert.Len(t, notifier.activated, 1)
}

func TestTickLeavesPendingUntouchedBelowMinAmount(t *testing.T) {
	store := memory.New()
	seedPending(t, store, time.Now().Add(time.Hour), numeric.FromFloat(5))

	rpc := &fakeRPC{nativeLamports: 1_000} // far below the 5-native-unit minimum
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, rpc, notifier)

	m.Tick(context.Background())

	p, err := store.GetPendingActivation(context.Background(), "pend-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingAwaitingDeposit, p.Status)
	assert.Empty(t, notifier.activated)
}

func TestTickExpiresPastWindow(t *testing.T) {
	store := memory.New()
	seedPending(t, store, time.Now().Add(-time.Minute), numeric.FromFloat(1))

	rpc := &fakeRPC{nativeLamports: 2_000_000_000}
	notifier := &fakeNotifier{}
	m := newTestMonitor(store, rpc, notifier)

	m.Tick(context.Background())

	p, err := store.GetPendingActivation(context.Background(), "pend-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingExpired, p.Status)
	assert.Len(t, notifier.expired, 1)
}
