package bundler

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-strategy-engine/internal/blockchain"
)

func newTestFactory(t *testing.T, rpcURL string) *blockchain.TransactionBuilder {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet, err := blockchain.NewWallet(base58.Encode(priv))
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	rpc := blockchain.NewRPCClient(rpcURL, "", "")
	factory, err := blockchain.NewTransactionBuilder(wallet, rpc, time.Hour, time.Hour, 0)
	if err != nil {
		t.Fatalf("new transaction builder: %v", err)
	}
	t.Cleanup(factory.Close)

	return factory
}

func newBlockhashServer(t *testing.T) *httptest.Server {
	t.Helper()
	hash := base58.Encode(make([]byte, 32))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"blockhash":"` + hash + `","lastValidBlockHeight":1}}}`))
	}))
}

func TestEnqueueFlushesAtBatchSize(t *testing.T) {
	rpcSrv := newBlockhashServer(t)
	defer rpcSrv.Close()
	factory := newTestFactory(t, rpcSrv.URL)

	var received int32
	var mu sync.Mutex
	var gotBundles [][]string
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params [][]string `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		if len(req.Params) > 0 {
			gotBundles = append(gotBundles, req.Params[0])
		}
		mu.Unlock()
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	b := New(Config{
		BatchSize:     2,
		FlushInterval: time.Hour,
		TipLamports:   1000,
		TipAccounts:   []string{base58.Encode(make([]byte, 32))},
		RelayURLs:     []string{relay.URL},
	}, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	b.Enqueue([]byte("tx1"))
	b.Enqueue([]byte("tx2")) // reaches batch_size, triggers immediate flush

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&received) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if atomic.LoadInt32(&received) == 0 {
		t.Fatal("expected relay to receive a bundle")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(gotBundles) == 0 {
		t.Fatal("no bundle recorded")
	}
	if len(gotBundles[0]) != 3 {
		t.Fatalf("expected bundle of [tip, tx1, tx2], got %d entries", len(gotBundles[0]))
	}
}

func TestStopForcesFinalDrain(t *testing.T) {
	rpcSrv := newBlockhashServer(t)
	defer rpcSrv.Close()
	factory := newTestFactory(t, rpcSrv.URL)

	var received int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	b := New(Config{
		BatchSize:     10,
		FlushInterval: time.Hour,
		TipLamports:   1000,
		TipAccounts:   []string{base58.Encode(make([]byte, 32))},
		RelayURLs:     []string{relay.URL},
	}, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	b.Enqueue([]byte("only-one"))
	b.Stop()

	if atomic.LoadInt32(&received) == 0 {
		t.Fatal("expected Stop to force a final drain and submit the pending transaction")
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty queue after Stop, got %d", b.Len())
	}

	if err := b.Enqueue([]byte("late")); err != ErrStopped {
		t.Fatalf("expected ErrStopped after Stop, got %v", err)
	}
}

func TestOneRelayFailureDoesNotBlockOthers(t *testing.T) {
	rpcSrv := newBlockhashServer(t)
	defer rpcSrv.Close()
	factory := newTestFactory(t, rpcSrv.URL)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	var received int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	b := New(Config{
		BatchSize:     1,
		FlushInterval: time.Hour,
		TipLamports:   1000,
		TipAccounts:   []string{base58.Encode(make([]byte, 32))},
		RelayURLs:     []string{failing.URL, ok.URL},
	}, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	b.Enqueue([]byte("tx"))

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&received) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&received) == 0 {
		t.Fatal("expected healthy relay to receive bundle despite the other failing")
	}
}
