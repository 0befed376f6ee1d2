package blockchain

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"
)

func newTestTransactionBuilder(t *testing.T) *TransactionBuilder {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet, err := NewWallet(base58.Encode(priv))
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	hash := base58.Encode(make([]byte, 32))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"blockhash":"` + hash + `","lastValidBlockHeight":1}}}`))
	}))
	t.Cleanup(srv.Close)

	rpc := NewRPCClient(srv.URL, srv.URL, "")
	builder, err := NewTransactionBuilder(wallet, rpc, time.Hour, time.Hour, 0)
	if err != nil {
		t.Fatalf("new transaction builder: %v", err)
	}
	t.Cleanup(builder.Close)
	return builder
}

func TestSignSerializedTransactionUnsignedPlaceholder(t *testing.T) {
	builder := newTestTransactionBuilder(t)

	// A sig-count byte of 0 followed by a bare message, as a quote
	// service returns before signing.
	dummyTx := "AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAA=="

	signedTx, err := builder.SignSerializedTransaction(dummyTx)
	if err != nil {
		t.Fatalf("SignSerializedTransaction failed: %v", err)
	}
	if signedTx == "" {
		t.Fatal("expected a non-empty signed transaction")
	}
}

func TestSignSerializedTransactionRejectsEmptyInput(t *testing.T) {
	builder := newTestTransactionBuilder(t)
	if _, err := builder.SignSerializedTransaction(""); err == nil {
		t.Fatal("expected an error for an empty transaction")
	}
}

func TestReSignSwapTransactionReturnsRawBytes(t *testing.T) {
	builder := newTestTransactionBuilder(t)
	dummyTx := "AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAA=="

	raw, err := builder.ReSignSwapTransaction(dummyTx)
	if err != nil {
		t.Fatalf("ReSignSwapTransaction failed: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty raw transaction bytes")
	}
}

func TestBuildComputeBudgetInstructionsEncodesLimitAndPrice(t *testing.T) {
	builder := newTestTransactionBuilder(t)
	builder.priorityFeeLamports = 100_000
	builder.SetComputeUnitLimit(400_000)

	setLimit, setPrice := builder.BuildComputeBudgetInstructions()
	if len(setLimit) != 5 || setLimit[0] != 2 {
		t.Errorf("unexpected setLimit instruction: %v", setLimit)
	}
	if len(setPrice) != 9 || setPrice[0] != 3 {
		t.Errorf("unexpected setPrice instruction: %v", setPrice)
	}
}

func TestGetRecentBlockhashUsesFeed(t *testing.T) {
	builder := newTestTransactionBuilder(t)
	hash, err := builder.GetRecentBlockhash()
	if err != nil {
		t.Fatalf("GetRecentBlockhash failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty blockhash")
	}
}
