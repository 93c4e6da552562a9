package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPRPCDriver implements RPCDriver against a JSON-RPC 2.0 endpoint using the
// named verbs this system depends on (getBalance, getParsedTokenAccountsByOwner,
// getLatestBlockhash, sendTransaction, getTransaction, getBlockHeight).
// It never retries internally; callers own retry policy.
type HTTPRPCDriver struct {
	name   string
	url    string
	wsURL  string
	apiKey string
	client *http.Client
	chains []ChainID

	mu      sync.Mutex
	reqID   int64
	started bool
}

// NewHTTPRPCDriver builds a driver bound to a single RPC endpoint.
func NewHTTPRPCDriver(name, url, wsURL, apiKey string, chains ...ChainID) *HTTPRPCDriver {
	if len(chains) == 0 {
		chains = []ChainID{ChainSolana}
	}
	return &HTTPRPCDriver{
		name:   name,
		url:    url,
		wsURL:  wsURL,
		apiKey: apiKey,
		chains: chains,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *HTTPRPCDriver) Name() string { return d.name }

func (d *HTTPRPCDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *HTTPRPCDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *HTTPRPCDriver) Ping(ctx context.Context) error {
	var height uint64
	return d.call(ctx, "getBlockHeight", []any{}, &height)
}

func (d *HTTPRPCDriver) SupportedChains() []ChainID { return d.chains }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (d *HTTPRPCDriver) nextID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqID++
	return d.reqID
}

func (d *HTTPRPCDriver) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: d.nextID(), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("rpc_error: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc_error: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc_error: %w", err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("rpc_error: decode response: %w", err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc_error: %s (code %d)", decoded.Error.Message, decoded.Error.Code)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("rpc_error: decode result: %w", err)
	}
	return nil
}

func (d *HTTPRPCDriver) GetBlockHeight(ctx context.Context, chain ChainID) (uint64, error) {
	var height uint64
	if err := d.call(ctx, "getBlockHeight", []any{}, &height); err != nil {
		return 0, err
	}
	return height, nil
}

func (d *HTTPRPCDriver) GetBlock(ctx context.Context, chain ChainID, identifier string) (*Block, error) {
	var block Block
	if err := d.call(ctx, "getBlock", []any{identifier}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (d *HTTPRPCDriver) GetTransaction(ctx context.Context, chain ChainID, txHash string) (*Transaction, error) {
	var tx Transaction
	if err := d.call(ctx, "getTransaction", []any{txHash, map[string]string{"commitment": "confirmed"}}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (d *HTTPRPCDriver) SendRawTransaction(ctx context.Context, chain ChainID, rawTx []byte) (string, error) {
	encoded := encodeBase64(rawTx)
	var signature string
	opts := map[string]any{"encoding": "base64", "skipPreflight": false, "preflightCommitment": "confirmed"}
	if err := d.call(ctx, "sendTransaction", []any{encoded, opts}, &signature); err != nil {
		return "", fmt.Errorf("send_failed: %w", err)
	}
	return signature, nil
}

// ConfirmTransaction polls getTransaction until the commitment is confirmed or
// lastValidBlockHeight is exceeded by the current chain height.
func (d *HTTPRPCDriver) ConfirmTransaction(ctx context.Context, chain ChainID, signature string, lastValidBlockHeight uint64) (*Transaction, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("confirmation_timeout: %w", ctx.Err())
		case <-ticker.C:
			tx, err := d.GetTransaction(ctx, chain, signature)
			if err == nil && tx != nil && tx.Status == TxStatusConfirmed {
				return tx, nil
			}
			if err == nil && tx != nil && tx.Status == TxStatusFailed {
				return tx, fmt.Errorf("send_failed: transaction %s failed: %s", signature, tx.Err)
			}
			height, herr := d.GetBlockHeight(ctx, chain)
			if herr == nil && lastValidBlockHeight > 0 && height > lastValidBlockHeight {
				return nil, fmt.Errorf("blockhash_expired: last valid height %d passed (now %d)", lastValidBlockHeight, height)
			}
		}
	}
}

func (d *HTTPRPCDriver) CallContract(ctx context.Context, chain ChainID, call ContractCall) ([]byte, error) {
	var result string
	if err := d.call(ctx, "simulateTransaction", []any{encodeBase64(call.Data)}, &result); err != nil {
		return nil, fmt.Errorf("simulation_failed: %w", err)
	}
	return []byte(result), nil
}

func (d *HTTPRPCDriver) GetBalance(ctx context.Context, chain ChainID, address string) (*big.Int, error) {
	var raw struct {
		Value int64 `json:"value"`
	}
	if err := d.call(ctx, "getBalance", []any{address}, &raw); err != nil {
		return nil, fmt.Errorf("rpc_error: %w", err)
	}
	return big.NewInt(raw.Value), nil
}

func (d *HTTPRPCDriver) GetTokenBalance(ctx context.Context, chain ChainID, mint, address string) (*big.Int, error) {
	var raw struct {
		Value struct {
			Amount string `json:"amount"`
		} `json:"value"`
	}
	opts := map[string]string{"mint": mint}
	if err := d.call(ctx, "getParsedTokenAccountsByOwner", []any{address, opts}, &raw); err != nil {
		return nil, fmt.Errorf("rpc_error: %w", err)
	}
	amount, ok := new(big.Int).SetString(raw.Value.Amount, 10)
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (d *HTTPRPCDriver) GetLatestBlockhash(ctx context.Context, chain ChainID) (string, uint64, error) {
	var raw struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := d.call(ctx, "getLatestBlockhash", []any{map[string]string{"commitment": "confirmed"}}, &raw); err != nil {
		return "", 0, fmt.Errorf("rpc_error: %w", err)
	}
	return raw.Value.Blockhash, raw.Value.LastValidBlockHeight, nil
}

// SubscribeBlocks is not supported over the plain HTTP JSON-RPC transport;
// block subscriptions require the websocket endpoint, which this driver does
// not yet implement.
func (d *HTTPRPCDriver) SubscribeBlocks(ctx context.Context, chain ChainID, handler BlockHandler) (Subscription, error) {
	return nil, fmt.Errorf("rpc_error: block subscriptions require RPC_WS_URL (%s); not implemented", d.wsURL)
}

func encodeBase64(b []byte) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	var sb strings.Builder
	for i := 0; i < len(b); i += 3 {
		chunk := b[i:min(i+3, len(b))]
		var n uint32
		for j, c := range chunk {
			n |= uint32(c) << uint(16-8*j)
		}
		sb.WriteByte(alphabet[(n>>18)&0x3F])
		sb.WriteByte(alphabet[(n>>12)&0x3F])
		if len(chunk) > 1 {
			sb.WriteByte(alphabet[(n>>6)&0x3F])
		} else {
			sb.WriteByte('=')
		}
		if len(chunk) > 2 {
			sb.WriteByte(alphabet[n&0x3F])
		} else {
			sb.WriteByte('=')
		}
	}
	return sb.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
