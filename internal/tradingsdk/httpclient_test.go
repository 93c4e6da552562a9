package tradingsdk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/numeric"
)

func TestQuoteDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quote", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(quoteResponse{
			OutAmount:   "12.5",
			SlippageBps: 50,
			Raw:         base64.StdEncoding.EncodeToString([]byte("unsigned-tx")),
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "test-key")
	quote, err := client.Quote(context.Background(), "mintA", "mintB", numeric.FromFloat(1), 50)
	require.NoError(t, err)
	assert.Equal(t, "mintA", quote.InMint)
	assert.Equal(t, "mintB", quote.OutMint)
	assert.Equal(t, 50, quote.SlippageBps)
	assert.Equal(t, []byte("unsigned-tx"), quote.Raw)
}

func TestQuoteSurfacesPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(quoteResponse{Error: "no route"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "")
	_, err := client.Quote(context.Background(), "mintA", "mintB", numeric.FromFloat(1), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route")
}

func TestListClaimableFiltersByMint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]claimablePositionWire{
			{TokenMint: "mintA", Wallet: "wallet1", GrossAmount: "3.25"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "")
	positions, err := client.ListClaimable(context.Background(), "wallet1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "mintA", positions[0].TokenMint)
	assert.True(t, positions[0].GrossAmount.Cmp(numeric.FromFloat(3.25)) == 0)
}

func TestDoRetriesOn5xxThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(quoteResponse{OutAmount: "1", Raw: base64.StdEncoding.EncodeToString([]byte("x"))})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "")
	_, err := client.Quote(context.Background(), "a", "b", numeric.FromFloat(1), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "the transient 503 should have been retried once")
}
