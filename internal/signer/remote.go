package signer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/solward/flywheel/internal/tradingsdk"
)

// HTTPRemoteSigner calls the remote delegated-signing service over HTTP,
// grounded on the same request/response client pattern as this codebase's
// chain.HTTPRPCDriver. It converts the transaction to the wire form the
// remote signer expects (base64-encoded raw bytes plus the app credentials)
// and returns the signed transaction bytes; it never inspects or mutates
// recent_blockhash/fee_payer/instructions (§4.1 invariant).
type HTTPRemoteSigner struct {
	baseURL   string
	appID     string
	appSecret string
	authKey   string
	client    *http.Client
}

// NewHTTPRemoteSigner builds a client bound to a single remote signer deployment.
func NewHTTPRemoteSigner(baseURL, appID, appSecret, authKey string) *HTTPRemoteSigner {
	return &HTTPRemoteSigner{
		baseURL:   baseURL,
		appID:     appID,
		appSecret: appSecret,
		authKey:   authKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type signRequest struct {
	WalletHandle    string `json:"wallet_handle"`
	Transaction     string `json:"transaction"`
	RecentBlockhash string `json:"recent_blockhash,omitempty"`
	FeePayer        string `json:"fee_payer,omitempty"`
}

type signResponse struct {
	SignedTransaction string `json:"signed_transaction"`
	Error             string `json:"error,omitempty"`
}

// Sign requests a signature over tx from the remote service for the wallet
// identified by signerHandle.
func (c *HTTPRemoteSigner) Sign(ctx context.Context, signerHandle string, tx tradingsdk.UnsignedTransaction) ([]byte, error) {
	payload := signRequest{
		WalletHandle:    signerHandle,
		Transaction:     base64.StdEncoding.EncodeToString(tx.Raw),
		RecentBlockhash: tx.RecentBlockhash,
		FeePayer:        tx.FeePayer,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", c.appID)
	req.Header.Set("X-App-Secret", c.appSecret)
	req.Header.Set("Authorization", "Bearer "+c.authKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote signer unreachable: %w", err)
	}
	defer resp.Body.Close()

	var decoded signResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode sign response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		return nil, fmt.Errorf("remote signer rejected: %s (status %d)", decoded.Error, resp.StatusCode)
	}

	signed, err := base64.StdEncoding.DecodeString(decoded.SignedTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}
	return signed, nil
}
