package claimengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/chain"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/signer"
	"github.com/solward/flywheel/internal/storage/memory"
	"github.com/solward/flywheel/internal/tokenlock"
	"github.com/solward/flywheel/internal/tradingsdk"

	"github.com/prometheus/client_golang/prometheus"

	core "github.com/solward/flywheel/internal/core"
)

type fakePlatform struct {
	positions []tradingsdk.ClaimablePosition
}

func (f *fakePlatform) ListClaimable(ctx context.Context, wallet string) ([]tradingsdk.ClaimablePosition, error) {
	return f.positions, nil
}

func (f *fakePlatform) BuildClaimTx(ctx context.Context, wallet string, mints []string) ([]tradingsdk.UnsignedTransaction, error) {
	out := make([]tradingsdk.UnsignedTransaction, len(mints))
	for i := range mints {
		out[i] = tradingsdk.UnsignedTransaction{Raw: []byte("claim")}
	}
	return out, nil
}

func (f *fakePlatform) BuildTransferTx(ctx context.Context, from, to string, amount numeric.Amount) (tradingsdk.UnsignedTransaction, error) {
	return tradingsdk.UnsignedTransaction{Raw: []byte("transfer")}, nil
}

type fakeRPC struct {
	chain.RPCDriver
}

func (fakeRPC) SendRawTransaction(ctx context.Context, _ chain.ChainID, _ []byte) (string, error) {
	return "sig", nil
}

func (fakeRPC) ConfirmTransaction(ctx context.Context, _ chain.ChainID, sig string, _ uint64) (*chain.Transaction, error) {
	return &chain.Transaction{Hash: sig, Status: chain.TxStatusConfirmed, BlockHeight: 1}, nil
}

type fakeRemoteSigner struct{}

func (fakeRemoteSigner) Sign(ctx context.Context, signerHandle string, tx tradingsdk.UnsignedTransaction) ([]byte, error) {
	return []byte("signed"), nil
}

func newTestEngine(store *memory.Store, platform tradingsdk.ClaimPlatform) *Engine {
	gateway := signer.New(fakeRPC{}, fakeRemoteSigner{}, nil, prometheus.NewRegistry(), core.NoopTracer)
	return New(Config{
		Store:    store,
		Platform: platform,
		Gateway:  gateway,
		Wallets:  NewStoreDirectory(store, "platform-ops"),
		Locks:    tokenlock.New(),
		ChainID:  chain.ChainSolana,
	})
}

// TestNonPlatformClaimSplitsFeeAndOwnerShare exercises spec scenario 2/3/4:
// a 0.9 gross claim with a 0.1 reserve nets 0.8 transferable, split 10%
// platform fee / remainder owner share (gross=0.9, platform_fee=0.08,
// owner_received=0.72).
func mustAmount(t *testing.T, s string) numeric.Amount {
	t.Helper()
	a, err := numeric.FromString(s)
	require.NoError(t, err)
	return a
}

func TestNonPlatformClaimSplitsFeeAndOwnerShare(t *testing.T) {
	store := memory.New()
	token := domain.Token{ID: "tok-1", Mint: "MINT", Source: domain.SourceLaunched, DevWallet: "dev-1", OpsWallet: "ops-1"}
	store.PutToken(token)

	gross := mustAmount(t, "0.9")
	platform := &fakePlatform{positions: []tradingsdk.ClaimablePosition{
		{TokenMint: "MINT", Wallet: "dev-1", GrossAmount: gross},
	}}
	e := newTestEngine(store, platform)
	e.reserve = mustAmount(t, "0.1")

	platformCfg := domain.DefaultPlatformConfig()
	platformCfg.PlatformFeePercentage = 0.10

	e.claimAndSettle(context.Background(), "dev-1", token, gross, platformCfg)

	claims, err := store.ListClaimsByToken(context.Background(), token.ID, 0)
	require.NoError(t, err)
	require.Len(t, claims, 1)

	claim := claims[0]
	assert.Zero(t, claim.GrossAmount.Cmp(gross), "gross amount must be threaded through from the claimable position, not hardcoded to zero")
	assert.InDelta(t, 0.08, claim.PlatformFee.Float64(), 1e-9)
	assert.InDelta(t, 0.72, claim.OwnerReceived.Float64(), 1e-9)
}

// TestPlatformOwnedClaimSkipsFeeSplit exercises the platform-owned token
// path: the full transferable amount goes to the owner (platform ops) leg,
// with no platform fee withheld.
func TestPlatformOwnedClaimSkipsFeeSplit(t *testing.T) {
	store := memory.New()
	token := domain.Token{ID: "tok-2", Mint: "MINT2", Source: domain.SourcePlatform, DevWallet: "dev-2", OpsWallet: "ops-2"}
	store.PutToken(token)

	gross := mustAmount(t, "0.5")
	platform := &fakePlatform{positions: []tradingsdk.ClaimablePosition{
		{TokenMint: "MINT2", Wallet: "dev-2", GrossAmount: gross},
	}}
	e := newTestEngine(store, platform)
	e.reserve = mustAmount(t, "0.1")

	e.claimAndSettle(context.Background(), "dev-2", token, gross, domain.DefaultPlatformConfig())

	claims, err := store.ListClaimsByToken(context.Background(), token.ID, 0)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].PlatformFee.IsZero())
	assert.Zero(t, claims[0].OwnerReceived.Cmp(mustAmount(t, "0.4")))

	trades, err := store.ListTradesByToken(context.Background(), token.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1, "platform-owned settlement is a single owner_transfer leg")
}

// TestSplitTransferSubmitsRealBuiltTransaction guards against the split
// settlement silently no-oping: a failing BuildTransferTx must produce a
// failed Trade row rather than a confirmed one built on a zero-value
// transaction.
func TestSplitTransferSubmitsRealBuiltTransaction(t *testing.T) {
	store := memory.New()
	token := domain.Token{ID: "tok-3", Mint: "MINT3", Source: domain.SourceLaunched, DevWallet: "dev-3", OpsWallet: "ops-3"}
	store.PutToken(token)

	platform := &failingTransferPlatform{}
	e := newTestEngine(store, platform)
	e.wallets = NewStoreDirectory(store, "platform-ops")

	e.settleSplit(context.Background(), token, mustAmount(t, "1"), mustAmount(t, "0.1"), mustAmount(t, "0.9"))

	trades, err := store.ListTradesByToken(context.Background(), token.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	for _, tr := range trades {
		assert.Equal(t, domain.TradeFailed, tr.Status)
		assert.NotEmpty(t, tr.Reason)
	}
}

type failingTransferPlatform struct{ fakePlatform }

func (failingTransferPlatform) BuildTransferTx(ctx context.Context, from, to string, amount numeric.Amount) (tradingsdk.UnsignedTransaction, error) {
	return tradingsdk.UnsignedTransaction{}, assert.AnError
}
