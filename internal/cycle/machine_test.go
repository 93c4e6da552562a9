package cycle

import (
	"context"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/chain"
	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/signer"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/storage/memory"
	"github.com/solward/flywheel/internal/strategy"
	"github.com/solward/flywheel/internal/tradingsdk"
)

// fakeRPC embeds chain.RPCDriver so only the methods a test needs are
// overridden; everything else panics if accidentally called.
type fakeRPC struct {
	chain.RPCDriver
	nativeBalance *big.Int
	tokenBalance  *big.Int
}

func (f *fakeRPC) GetBalance(ctx context.Context, _ chain.ChainID, _ string) (*big.Int, error) {
	return f.nativeBalance, nil
}

func (f *fakeRPC) GetTokenBalance(ctx context.Context, _ chain.ChainID, _, _ string) (*big.Int, error) {
	return f.tokenBalance, nil
}

func (f *fakeRPC) SendRawTransaction(ctx context.Context, _ chain.ChainID, _ []byte) (string, error) {
	return "sig", nil
}

func (f *fakeRPC) ConfirmTransaction(ctx context.Context, _ chain.ChainID, sig string, _ uint64) (*chain.Transaction, error) {
	return &chain.Transaction{Hash: sig, Status: chain.TxStatusConfirmed, BlockHeight: 1}, nil
}

// fakeAMM returns a fixed quote and an empty unsigned transaction; the
// signer gateway is what actually exercises submission, so the swap payload
// itself is irrelevant to these tests.
type fakeAMM struct{}

func (fakeAMM) Quote(ctx context.Context, inMint, outMint string, amount numeric.Amount, slippageBps int) (tradingsdk.Quote, error) {
	return tradingsdk.Quote{InMint: inMint, OutMint: outMint, InAmount: amount, OutAmount: amount}, nil
}

func (fakeAMM) BuildSwap(ctx context.Context, quote tradingsdk.Quote, userPubkey string) (tradingsdk.UnsignedTransaction, error) {
	return tradingsdk.UnsignedTransaction{Raw: []byte("tx")}, nil
}

type fakeRemoteSigner struct{}

func (fakeRemoteSigner) Sign(ctx context.Context, signerHandle string, tx tradingsdk.UnsignedTransaction) ([]byte, error) {
	return []byte("signed"), nil
}

func newTestMachine(store *memory.Store, rpc *fakeRPC) *Machine {
	cache := marketcache.New(rpc, nil)
	gateway := signer.New(rpc, fakeRemoteSigner{}, nil, prometheus.NewRegistry(), core.NoopTracer)
	return New(store, cache, gateway, fakeAMM{}, chain.ChainSolana, strategy.DefaultRegistry())
}

func seedToken(store *memory.Store, cfg domain.TokenConfig, cycle domain.CycleState) domain.Token {
	token := domain.Token{ID: "tok-1", Mint: "MINT", OpsWallet: "ops-1", DevWallet: "dev-1", Active: true}
	store.PutToken(token)
	cfg.TokenID = token.ID
	store.PutTokenConfig(cfg)
	cycle.TokenID = token.ID
	store.PutCycleState(cycle)
	return token
}

func TestStepBuyAdvancesCountAndTransitionsToSellAtCycleSize(t *testing.T) {
	store := memory.New()
	rpc := &fakeRPC{nativeBalance: big.NewInt(1000), tokenBalance: big.NewInt(500)}
	m := newTestMachine(store, rpc)

	cfg := domain.DefaultTokenConfig("tok-1")
	cfg.MinBuyAmount = numeric.FromFloat(1)
	cfg.MaxBuyAmount = numeric.FromFloat(1)
	cfg.CycleSizeBuys = 1
	cfg.CycleSizeSells = 5
	token := seedToken(store, cfg, domain.NewCycleState("tok-1"))

	st := fetchSchedulable(t, store, token.ID)
	out := m.Step(context.Background(), st)

	require.NoError(t, out.Err)
	assert.True(t, out.Traded)

	cycle, err := store.GetCycleState(context.Background(), token.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSell, cycle.Phase, "buy count reached cycle_size_buys, should transition to sell phase")
	assert.Equal(t, 0, cycle.BuyCount)
	assert.False(t, cycle.SellAmountPerTx.IsZero())
}

func TestStepSellResetsToBuyAtCycleSize(t *testing.T) {
	store := memory.New()
	rpc := &fakeRPC{nativeBalance: big.NewInt(1000), tokenBalance: big.NewInt(500)}
	m := newTestMachine(store, rpc)

	cfg := domain.DefaultTokenConfig("tok-1")
	cfg.CycleSizeSells = 1
	cycle := domain.NewCycleState("tok-1")
	cycle.Phase = domain.PhaseSell
	cycle.SellAmountPerTx = numeric.FromFloat(10)
	token := seedToken(store, cfg, cycle)

	st := fetchSchedulable(t, store, token.ID)
	out := m.Step(context.Background(), st)

	require.NoError(t, out.Err)
	assert.True(t, out.Traded)

	got, err := store.GetCycleState(context.Background(), token.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseBuy, got.Phase, "sell count reached cycle_size_sells, should reset to buy phase")
	assert.Equal(t, 0, got.SellCount)
}

func TestTurboLiteForceSellsOnLowNativeBalance(t *testing.T) {
	store := memory.New()
	rpc := &fakeRPC{nativeBalance: big.NewInt(0), tokenBalance: big.NewInt(200)} // below forceSellNativeFloor
	m := newTestMachine(store, rpc)

	cfg := domain.DefaultTokenConfigFor("tok-1", domain.AlgorithmTurboLite)
	cfg.MinBuyAmount = numeric.FromFloat(1)
	cfg.MaxBuyAmount = numeric.FromFloat(2)
	token := seedToken(store, cfg, domain.NewCycleState("tok-1"))

	st := fetchSchedulable(t, store, token.ID)
	out := m.Step(context.Background(), st)

	require.NoError(t, out.Err)
	assert.False(t, out.Traded, "force-sell transition itself submits no trade")
	assert.Equal(t, strategy.SkipNoneDue, out.Skipped)

	got, err := store.GetCycleState(context.Background(), token.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSell, got.Phase)
}

func TestConsecutiveFailureBreakerPauses(t *testing.T) {
	store := memory.New()
	rpc := &fakeRPC{nativeBalance: big.NewInt(1000), tokenBalance: big.NewInt(500)}
	m := newTestMachine(store, rpc)

	cfg := domain.DefaultTokenConfig("tok-1")
	cycle := domain.NewCycleState("tok-1")
	cycle.ConsecutiveFailures = 10
	token := seedToken(store, cfg, cycle)

	st := fetchSchedulable(t, store, token.ID)
	out := m.Step(context.Background(), st)

	assert.True(t, out.Paused)
	got, err := store.GetCycleState(context.Background(), token.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ConsecutiveFailures, "breaker resets the counter once tripped")
}

func fetchSchedulable(t *testing.T, store *memory.Store, tokenID string) storage.SchedulableToken {
	t.Helper()
	list, err := store.ListTokensForScheduler(context.Background(), "")
	require.NoError(t, err)
	for _, st := range list {
		if st.Token.ID == tokenID {
			return st
		}
	}
	t.Fatalf("token %s not found in scheduler listing", tokenID)
	return storage.SchedulableToken{}
}
