// Package chain provides a JSON-RPC client for the BSC-compatible chain that
// backs deposits.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
)

// Client is an Ethereum-style JSON-RPC client. It is constructed explicitly
// and injected wherever chain reads are needed; there is no shared session.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

var _ deposit.Observer = (*Client)(nil)

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// NewClient creates a new chain client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Call makes a raw JSON-RPC call. A null result comes back as nil.
func (c *Client) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if string(rpcResp.Result) == "null" {
		return nil, nil
	}
	return rpcResp.Result, nil
}

// BlockNumber returns the current block height. Used as a liveness probe.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}

	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return 0, err
	}
	n, ok := parseHexBig(hex)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("malformed block number %q", hex)
	}
	return n.Uint64(), nil
}

// Balance returns an address's native balance in wei.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_getBalance", []any{address, "latest"})
	if err != nil {
		return nil, err
	}

	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return nil, err
	}
	n, ok := parseHexBig(hex)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q", hex)
	}
	return n, nil
}

type rpcTransaction struct {
	Hash  string `json:"hash"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// TransactionByRef fetches a transaction by hash. The bool reports whether
// the node knows the transaction yet.
func (c *Client) TransactionByRef(ctx context.Context, ref string) (deposit.ChainTransaction, bool, error) {
	result, err := c.Call(ctx, "eth_getTransactionByHash", []any{ref})
	if err != nil {
		return deposit.ChainTransaction{}, false, err
	}
	if result == nil {
		return deposit.ChainTransaction{}, false, nil
	}

	var tx rpcTransaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return deposit.ChainTransaction{}, false, err
	}
	value, ok := parseHexBig(tx.Value)
	if !ok {
		return deposit.ChainTransaction{}, false, fmt.Errorf("malformed value %q in transaction %s", tx.Value, ref)
	}
	return deposit.ChainTransaction{
		Ref:   ref,
		To:    strings.ToLower(tx.To),
		Value: value,
	}, true, nil
}

type rpcReceipt struct {
	Status string `json:"status"`
}

// ReceiptByRef fetches a mined transaction's receipt. The bool reports
// whether the transaction has been mined yet.
func (c *Client) ReceiptByRef(ctx context.Context, ref string) (deposit.ChainReceipt, bool, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []any{ref})
	if err != nil {
		return deposit.ChainReceipt{}, false, err
	}
	if result == nil {
		return deposit.ChainReceipt{}, false, nil
	}

	var receipt rpcReceipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return deposit.ChainReceipt{}, false, err
	}
	return deposit.ChainReceipt{
		Ref:     ref,
		Success: receipt.Status == "0x1",
	}, true, nil
}

func parseHexBig(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return big.NewInt(0), true
	}
	return new(big.Int).SetString(s, 16)
}
