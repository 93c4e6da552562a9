package tradingsdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/ratelimit"
	"github.com/solward/flywheel/internal/resilience"
)

// HTTPClient calls an external aggregator/launch-platform HTTP API,
// implementing both AMM and ClaimPlatform, grounded on the same
// request/response client pattern as this codebase's signer.HTTPRemoteSigner
// and chain.HTTPRPCDriver. The boundary never routes or accrues anything
// itself; it only marshals these two contracts onto HTTP. Calls are rate
// limited and circuit-broken since the platform is a shared external
// dependency every tenant's cycle contends for.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *ratelimit.RateLimitedClient
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewHTTPClient builds a client bound to one aggregator/platform deployment.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	raw := &http.Client{Timeout: 15 * time.Second}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  ratelimit.NewRateLimitedClient(raw, ratelimit.DefaultConfig()),
		breaker: resilience.New(resilience.DefaultConfig()),
		retry:   resilience.DefaultRetryConfig(),
	}
}

type quoteResponse struct {
	OutAmount   string `json:"out_amount"`
	SlippageBps int    `json:"slippage_bps"`
	Raw         string `json:"raw"`
	Error       string `json:"error,omitempty"`
}

func (c *HTTPClient) Quote(ctx context.Context, inMint, outMint string, amount numeric.Amount, slippageBps int) (Quote, error) {
	url := fmt.Sprintf("%s/v1/quote?in=%s&out=%s&amount=%s&slippage_bps=%d", c.baseURL, inMint, outMint, amount.String(), slippageBps)
	var decoded quoteResponse
	if err := c.getJSON(ctx, url, &decoded); err != nil {
		return Quote{}, err
	}
	if decoded.Error != "" {
		return Quote{}, fmt.Errorf("tradingsdk: quote rejected: %s", decoded.Error)
	}
	out, err := numeric.FromString(decoded.OutAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("tradingsdk: decode quote out_amount: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(decoded.Raw)
	if err != nil {
		return Quote{}, fmt.Errorf("tradingsdk: decode quote raw payload: %w", err)
	}
	return Quote{InMint: inMint, OutMint: outMint, InAmount: amount, OutAmount: out, SlippageBps: decoded.SlippageBps, Raw: raw}, nil
}

type buildSwapRequest struct {
	Quote      string `json:"quote"`
	UserPubkey string `json:"user_pubkey"`
}

type buildTxResponse struct {
	Transaction     string `json:"transaction"`
	RecentBlockhash string `json:"recent_blockhash"`
	FeePayer        string `json:"fee_payer"`
	Error           string `json:"error,omitempty"`
}

func (c *HTTPClient) BuildSwap(ctx context.Context, quote Quote, userPubkey string) (UnsignedTransaction, error) {
	payload := buildSwapRequest{Quote: base64.StdEncoding.EncodeToString(quote.Raw), UserPubkey: userPubkey}
	var decoded buildTxResponse
	if err := c.postJSON(ctx, c.baseURL+"/v1/swap", payload, &decoded); err != nil {
		return UnsignedTransaction{}, err
	}
	if decoded.Error != "" {
		return UnsignedTransaction{}, fmt.Errorf("tradingsdk: build swap rejected: %s", decoded.Error)
	}
	raw, err := base64.StdEncoding.DecodeString(decoded.Transaction)
	if err != nil {
		return UnsignedTransaction{}, fmt.Errorf("tradingsdk: decode swap transaction: %w", err)
	}
	return UnsignedTransaction{Raw: raw, RecentBlockhash: decoded.RecentBlockhash, FeePayer: decoded.FeePayer}, nil
}

type claimablePositionWire struct {
	TokenMint   string `json:"token_mint"`
	Wallet      string `json:"wallet"`
	GrossAmount string `json:"gross_amount"`
}

func (c *HTTPClient) ListClaimable(ctx context.Context, wallet string) ([]ClaimablePosition, error) {
	url := fmt.Sprintf("%s/v1/claimable?wallet=%s", c.baseURL, wallet)
	var decoded []claimablePositionWire
	if err := c.getJSON(ctx, url, &decoded); err != nil {
		return nil, err
	}
	out := make([]ClaimablePosition, 0, len(decoded))
	for _, p := range decoded {
		gross, err := numeric.FromString(p.GrossAmount)
		if err != nil {
			return nil, fmt.Errorf("tradingsdk: decode claimable gross_amount: %w", err)
		}
		out = append(out, ClaimablePosition{TokenMint: p.TokenMint, Wallet: p.Wallet, GrossAmount: gross})
	}
	return out, nil
}

type buildClaimRequest struct {
	Wallet string   `json:"wallet"`
	Mints  []string `json:"mints"`
}

func (c *HTTPClient) BuildClaimTx(ctx context.Context, wallet string, mints []string) ([]UnsignedTransaction, error) {
	payload := buildClaimRequest{Wallet: wallet, Mints: mints}
	var decoded []buildTxResponse
	if err := c.postJSON(ctx, c.baseURL+"/v1/claim/build", payload, &decoded); err != nil {
		return nil, err
	}
	out := make([]UnsignedTransaction, 0, len(decoded))
	for _, tx := range decoded {
		if tx.Error != "" {
			return nil, fmt.Errorf("tradingsdk: build claim rejected: %s", tx.Error)
		}
		raw, err := base64.StdEncoding.DecodeString(tx.Transaction)
		if err != nil {
			return nil, fmt.Errorf("tradingsdk: decode claim transaction: %w", err)
		}
		out = append(out, UnsignedTransaction{Raw: raw, RecentBlockhash: tx.RecentBlockhash, FeePayer: tx.FeePayer})
	}
	return out, nil
}

type buildTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (c *HTTPClient) BuildTransferTx(ctx context.Context, from, to string, amount numeric.Amount) (UnsignedTransaction, error) {
	payload := buildTransferRequest{From: from, To: to, Amount: amount.String()}
	var decoded buildTxResponse
	if err := c.postJSON(ctx, c.baseURL+"/v1/transfer/build", payload, &decoded); err != nil {
		return UnsignedTransaction{}, err
	}
	if decoded.Error != "" {
		return UnsignedTransaction{}, fmt.Errorf("tradingsdk: build transfer rejected: %s", decoded.Error)
	}
	raw, err := base64.StdEncoding.DecodeString(decoded.Transaction)
	if err != nil {
		return UnsignedTransaction{}, fmt.Errorf("tradingsdk: decode transfer transaction: %w", err)
	}
	return UnsignedTransaction{Raw: raw, RecentBlockhash: decoded.RecentBlockhash, FeePayer: decoded.FeePayer}, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("tradingsdk: build request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tradingsdk: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("tradingsdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// do sends req through the circuit breaker, retrying with backoff on
// failure (transport errors and non-2xx status alike count as a trip
// against the breaker, since a flaky platform deployment fails both ways).
func (c *HTTPClient) do(req *http.Request, out any) error {
	return resilience.Retry(req.Context(), c.retry, func() error {
		return c.breaker.Execute(req.Context(), func() error {
			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("tradingsdk: request failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("tradingsdk: unexpected status %d", resp.StatusCode)
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("tradingsdk: decode response: %w", err)
			}
			return nil
		})
	})
}
