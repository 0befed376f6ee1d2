package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func jsonRPCServer(t *testing.T, handle func(method string, params []interface{}) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		result, rpcErr := handle(req.Method, req.Params)
		w.Header().Set("Content-Type", "application/json")
		if rpcErr != nil {
			json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
			return
		}
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: raw})
	}))
}

func TestGetLatestBlockhashRoundTrip(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		if method != "getLatestBlockhash" {
			t.Errorf("unexpected method %s", method)
		}
		return map[string]interface{}{
			"value": map[string]interface{}{"blockhash": "abc123", "lastValidBlockHeight": 42},
		}, nil
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, srv.URL, "test-api-key")
	result, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash failed: %v", err)
	}
	if result.Value.Blockhash != "abc123" || result.Value.LastValidBlockHeight != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGetBalanceFallsBackAfterCircuitOpens(t *testing.T) {
	var primaryHits int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := jsonRPCServer(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		return map[string]interface{}{"value": 5_000_000_000}, nil
	})
	defer fallback.Close()

	client := NewRPCClient(primary.URL, fallback.URL, "")

	var lastErr error
	for i := 0; i < 6; i++ {
		_, lastErr = client.GetBalance(context.Background(), "anyAddress")
	}
	if lastErr != nil {
		t.Fatalf("expected fallback to eventually succeed, got %v", lastErr)
	}

	hitsBeforeOpen := primaryHits
	balance, err := client.GetBalance(context.Background(), "anyAddress")
	if err != nil {
		t.Fatalf("GetBalance after circuit open: %v", err)
	}
	if balance != 5_000_000_000 {
		t.Errorf("expected balance from fallback, got %d", balance)
	}
	if primaryHits != hitsBeforeOpen {
		t.Errorf("expected circuit breaker to skip the primary once open, got %d more hits", primaryHits-hitsBeforeOpen)
	}
}

func TestRPCErrorPropagatesFromResponse(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32602, Message: "invalid params"}
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, srv.URL, "")
	_, err := client.GetBalance(context.Background(), "x")
	if err == nil {
		t.Fatal("expected an error")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
}

func TestLatencyMsReturnsNegativeOnFailure(t *testing.T) {
	client := NewRPCClient("http://127.0.0.1:0", "http://127.0.0.1:0", "")
	if got := client.LatencyMs(); got != -1 {
		t.Errorf("expected -1 for an unreachable RPC, got %d", got)
	}
}

func TestCheckTransactionReportsNotFound(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		return map[string]interface{}{"value": []interface{}{nil}}, nil
	})
	defer srv.Close()

	client := NewRPCClient(srv.URL, srv.URL, "")
	result, err := client.CheckTransaction(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("CheckTransaction: %v", err)
	}
	if result.Status != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", result.Status)
	}
	if fmt.Sprint(result) == "" {
		t.Error("String() should never be empty")
	}
}
