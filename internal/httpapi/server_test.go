package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/admin"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/storage/memory"
	"github.com/solward/flywheel/internal/tradingsdk"
)

const testBearerToken = "test-service-token"

type fakeClaimPlatform struct {
	positions []tradingsdk.ClaimablePosition
}

func (f *fakeClaimPlatform) ListClaimable(ctx context.Context, wallet string) ([]tradingsdk.ClaimablePosition, error) {
	return f.positions, nil
}

func (f *fakeClaimPlatform) BuildClaimTx(ctx context.Context, wallet string, mints []string) ([]tradingsdk.UnsignedTransaction, error) {
	return nil, nil
}

func (f *fakeClaimPlatform) BuildTransferTx(ctx context.Context, from, to string, amount numeric.Amount) (tradingsdk.UnsignedTransaction, error) {
	return tradingsdk.UnsignedTransaction{}, nil
}

func newTestServer(store *memory.Store, claims tradingsdk.ClaimPlatform) *Server {
	plane := admin.New(store, nil, nil, nil)
	cache := marketcache.New(nil, nil)
	return New(Config{
		Store:    store,
		Admin:    plane,
		Cache:    cache,
		ClaimSDK: claims,
		Auth:     AuthConfig{BearerTokens: []string{testBearerToken}},
	})
}

func authedRequest(method, path string, body *strings.Reader) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testBearerToken)
	return req
}

func TestHandleListTokensRequiresAuth(t *testing.T) {
	store := memory.New()
	s := newTestServer(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/tokens", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleListTokensReturnsSeededTokens(t *testing.T) {
	store := memory.New()
	store.PutToken(domain.Token{ID: "tok-1", Mint: "MINT", Symbol: "TEST", Active: true})
	s := newTestServer(store, nil)

	req := authedRequest(http.MethodGet, "/tokens", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tokens []tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.Len(t, tokens, 1)
	assert.Equal(t, "MINT", tokens[0].Mint)
}

func TestHandleGetTokenNotFound(t *testing.T) {
	store := memory.New()
	s := newTestServer(store, nil)

	req := authedRequest(http.MethodGet, "/tokens/UNKNOWN", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetClaimableFiltersByMint(t *testing.T) {
	store := memory.New()
	store.PutToken(domain.Token{ID: "tok-1", Mint: "MINT", DevWallet: "dev-1", Active: true})
	claims := &fakeClaimPlatform{positions: []tradingsdk.ClaimablePosition{
		{TokenMint: "MINT", Wallet: "dev-1", GrossAmount: numeric.FromInt(5)},
		{TokenMint: "OTHER", Wallet: "dev-1", GrossAmount: numeric.FromInt(9)},
	}}
	s := newTestServer(store, claims)

	req := authedRequest(http.MethodGet, "/tokens/MINT/claimable", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var positions []claimablePositionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1, "only the requested mint's positions should be returned")
}

func TestHandleCreatePendingActivationSetsTurboLiteDefaultsByAlgorithm(t *testing.T) {
	store := memory.New()
	s := newTestServer(store, nil)

	body := strings.NewReader(`{
		"expected_deposit_address": "addr-1",
		"owner_id": "owner-1",
		"mint": "MINT",
		"min_amount": "1.5",
		"algorithm": "turbo_lite"
	}`)
	req := authedRequest(http.MethodPost, "/lifecycle/pending-activations", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	pending, err := store.GetPendingActivation(req.Context(), created["id"])
	require.NoError(t, err)
	assert.Equal(t, domain.AlgorithmTurboLite, pending.Payload.Config.Algorithm)
	assert.Equal(t, 8, pending.Payload.Config.CycleSizeBuys)
	assert.Equal(t, 8, pending.Payload.Config.CycleSizeSells)
}

func TestHandleCreatePendingActivationRejectsMissingFields(t *testing.T) {
	store := memory.New()
	s := newTestServer(store, nil)

	body := strings.NewReader(`{"min_amount": "1"}`)
	req := authedRequest(http.MethodPost, "/lifecycle/pending-activations", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCancelPendingActivationNotFound(t *testing.T) {
	store := memory.New()
	s := newTestServer(store, nil)

	req := authedRequest(http.MethodDelete, "/lifecycle/pending-activations/unknown-id", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
