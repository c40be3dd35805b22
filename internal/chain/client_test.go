package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, results map[string]string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestTransactionByRef(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"eth_getTransactionByHash": `{"hash":"0xabc","to":"0xTREASURY","value":"0xde0b6b3a7640000"}`,
	})

	tx, found, err := client.TransactionByRef(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("transaction by ref: %v", err)
	}
	if !found {
		t.Fatal("expected transaction to be found")
	}
	if tx.To != "0xtreasury" {
		t.Fatalf("expected lowercased recipient, got %q", tx.To)
	}
	if tx.Value.String() != "1000000000000000000" {
		t.Fatalf("expected 1e18 wei, got %s", tx.Value)
	}
}

func TestTransactionByRefNotFound(t *testing.T) {
	client := newTestClient(t, nil)

	_, found, err := client.TransactionByRef(context.Background(), "0xmissing")
	if err != nil {
		t.Fatalf("transaction by ref: %v", err)
	}
	if found {
		t.Fatal("expected transaction to be absent")
	}
}

func TestReceiptByRef(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"eth_getTransactionReceipt": `{"status":"0x0"}`,
	})

	receipt, found, err := client.ReceiptByRef(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("receipt by ref: %v", err)
	}
	if !found {
		t.Fatal("expected receipt to be found")
	}
	if receipt.Success {
		t.Fatal("expected failed execution status")
	}
}

func TestBlockNumber(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"eth_blockNumber": `"0x10"`,
	})

	height, err := client.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("block number: %v", err)
	}
	if height != 16 {
		t.Fatalf("expected height 16, got %d", height)
	}
}

func TestCallSurfacesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, _, err := client.TransactionByRef(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected rpc error")
	}
}
