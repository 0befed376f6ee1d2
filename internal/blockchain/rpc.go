package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RPCTransport is the async request/response collaborator RPCClient
// delegates every call to. It is the seam the rest of the package
// programs against instead of a concrete HTTP client: swapping in a
// fake for tests, a pooled HTTP/2 client, or a future multiplexed
// WebSocket transport never touches the domain methods below.
type RPCTransport interface {
	Call(ctx context.Context, method string, params []interface{}, out interface{}) error
}

// rpcRequest is the JSON-RPC 2.0 request envelope a transport marshals.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope a transport decodes.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error shape returned inside a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// BlockhashResult is the result of getLatestBlockhash.
type BlockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// BalanceResult is the result of getBalance.
type BalanceResult struct {
	Value uint64 `json:"value"`
}

// SendTxResult is the result of sendTransaction.
type SendTxResult string

// RPCClient exposes the slice of the Solana JSON-RPC surface TxFactory
// and the position/risk loops need. It owns none of the wire details
// itself; those live behind the injected RPCTransport.
type RPCClient struct {
	transport RPCTransport
}

// NewRPCClient builds an RPCClient backed by an HTTP JSON-RPC transport
// that fails over from primaryURL to fallbackURL behind a circuit
// breaker.
func NewRPCClient(primaryURL, fallbackURL, apiKey string) *RPCClient {
	return &RPCClient{transport: newHTTPTransport(primaryURL, fallbackURL, apiKey)}
}

// NewRPCClientWithTransport builds an RPCClient around an arbitrary
// RPCTransport, for tests and for alternative wire implementations.
func NewRPCClientWithTransport(t RPCTransport) *RPCClient {
	return &RPCClient{transport: t}
}

// GetLatestBlockhash fetches the latest blockhash.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (*BlockhashResult, error) {
	var result BlockhashResult
	params := []interface{}{map[string]string{"commitment": "confirmed"}}
	if err := c.transport.Call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBalance fetches the SOL balance for a public key.
func (c *RPCClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var result BalanceResult
	params := []interface{}{pubkey, map[string]string{"commitment": "confirmed"}}
	if err := c.transport.Call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// SendTransaction submits a signed, base64-encoded transaction.
func (c *RPCClient) SendTransaction(ctx context.Context, signedTx string, skipPreflight bool) (string, error) {
	var result SendTxResult
	params := []interface{}{
		signedTx,
		map[string]interface{}{
			"encoding":            "base64",
			"skipPreflight":       skipPreflight,
			"preflightCommitment": "processed",
			"maxRetries":          3,
		},
	}
	if err := c.transport.Call(ctx, "sendTransaction", params, &result); err != nil {
		return "", err
	}
	return string(result), nil
}

// GetTokenAccountBalance fetches an SPL token account's balance.
func (c *RPCClient) GetTokenAccountBalance(ctx context.Context, tokenAccount string) (uint64, uint8, error) {
	var result struct {
		Value struct {
			Amount   string `json:"amount"`
			Decimals uint8  `json:"decimals"`
		} `json:"value"`
	}
	if err := c.transport.Call(ctx, "getTokenAccountBalance", []interface{}{tokenAccount}, &result); err != nil {
		return 0, 0, err
	}
	var amount uint64
	fmt.Sscanf(result.Value.Amount, "%d", &amount)
	return amount, result.Value.Decimals, nil
}

// LatencyMs estimates round-trip latency to the RPC cluster (for
// display only).
func (c *RPCClient) LatencyMs() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.GetLatestBlockhash(ctx); err != nil {
		return -1
	}
	return time.Since(start).Milliseconds()
}

// SignatureStatus represents the confirmation status of one signature.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"` // nil = finalized
	Err                interface{} `json:"err"`            // nil = success
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// GetSignatureStatuses checks the status of a batch of signatures.
func (c *RPCClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []interface{}{signatures, map[string]bool{"searchTransactionHistory": true}}
	if err := c.transport.Call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// TxCheckResult is a human-readable transaction check result.
type TxCheckResult struct {
	Signature          string
	Status             string // "SUCCESS", "FAILED", "NOT_FOUND", "PENDING"
	Message            string
	Slot               uint64
	Confirmations      uint64
	ConfirmationStatus string
	ErrorDetails       interface{}
}

// String formats r for CLI/log output.
func (r *TxCheckResult) String() string {
	switch r.Status {
	case "SUCCESS":
		return fmt.Sprintf("✅ %s | Slot: %d | Status: %s", r.Status, r.Slot, r.ConfirmationStatus)
	case "FAILED":
		return fmt.Sprintf("❌ %s | Slot: %d | Error: %s", r.Status, r.Slot, r.Message)
	default:
		return fmt.Sprintf("⏳ %s | %s", r.Status, r.Message)
	}
}

// CheckTransaction looks up a single signature and renders a
// TxCheckResult from it.
func (c *RPCClient) CheckTransaction(ctx context.Context, signature string) (*TxCheckResult, error) {
	statuses, err := c.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return nil, err
	}

	result := &TxCheckResult{Signature: signature}

	if len(statuses) == 0 || statuses[0] == nil {
		result.Status = "NOT_FOUND"
		result.Message = "transaction not found (may still be processing)"
		return result, nil
	}

	status := statuses[0]
	result.Slot = status.Slot
	result.ConfirmationStatus = status.ConfirmationStatus
	if status.Confirmations != nil {
		result.Confirmations = *status.Confirmations
	}

	if status.Err == nil {
		result.Status = "SUCCESS"
		result.Message = fmt.Sprintf("transaction confirmed (%s)", status.ConfirmationStatus)
		return result, nil
	}

	result.Status = "FAILED"
	errBytes, _ := json.Marshal(status.Err)
	result.Message = string(errBytes)
	result.ErrorDetails = status.Err
	return result, nil
}

// TokenAccountInfo holds a single SPL token account's balance.
type TokenAccountInfo struct {
	Address  string
	Mint     string
	Amount   uint64
	Decimals uint8
}

const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// GetTokenAccountsByOwner fetches token accounts owned by owner. If
// mint is non-empty it filters to that mint; otherwise it queries both
// the legacy Token Program and Token-2022, since getTokenAccountsByOwner
// only accepts one programId/mint filter per call.
func (c *RPCClient) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccountInfo, error) {
	if mint != "" {
		return c.fetchTokenAccounts(ctx, owner, map[string]string{"mint": mint})
	}

	accounts, err := c.fetchTokenAccounts(ctx, owner, map[string]string{"programId": TokenProgramID})
	if err != nil {
		return nil, err
	}

	accounts2022, err := c.fetchTokenAccounts(ctx, owner, map[string]string{"programId": Token2022ProgramID})
	if err != nil {
		// A partial result here would make the executor think a
		// Token-2022 position has zero balance and mark it sold/failed.
		return nil, fmt.Errorf("fetch token-2022 accounts: %w", err)
	}
	return append(accounts, accounts2022...), nil
}

func (c *RPCClient) fetchTokenAccounts(ctx context.Context, owner string, filter map[string]string) ([]TokenAccountInfo, error) {
	var result struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals uint8  `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	params := []interface{}{owner, filter, map[string]string{"encoding": "jsonParsed"}}
	if err := c.transport.Call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccountInfo, 0, len(result.Value))
	for _, v := range result.Value {
		var amount uint64
		fmt.Sscanf(v.Account.Data.Parsed.Info.TokenAmount.Amount, "%d", &amount)
		accounts = append(accounts, TokenAccountInfo{
			Address:  v.Pubkey,
			Mint:     v.Account.Data.Parsed.Info.Mint,
			Amount:   amount,
			Decimals: v.Account.Data.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}

// httpTransport is the default RPCTransport: plain HTTP JSON-RPC with
// a primary/fallback pair behind a circuit breaker.
type httpTransport struct {
	primaryURL  string
	fallbackURL string
	apiKey      string
	httpClient  *http.Client
	breaker     *circuitBreaker
}

func newHTTPTransport(primaryURL, fallbackURL, apiKey string) *httpTransport {
	pool := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &httpTransport{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second, Transport: pool},
		breaker:     newCircuitBreaker(5, 30*time.Second),
	}
}

func (t *httpTransport) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}

	if t.breaker.isOpen() {
		return t.post(ctx, t.fallbackURL, req, out)
	}

	if err := t.post(ctx, t.primaryURL, req, out); err != nil {
		t.breaker.recordFailure()
		log.Warn().Err(err).Str("method", method).Msg("primary RPC failed, trying fallback")
		return t.post(ctx, t.fallbackURL, req, out)
	}

	t.breaker.recordSuccess()
	return nil
}

func (t *httpTransport) post(ctx context.Context, url string, rpcReq rpcRequest, out interface{}) error {
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("x-api-key", t.apiKey)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
