package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetSwapTransactionSimulationModeReturnsDummyPlaceholder(t *testing.T) {
	client := NewClient("https://api.jup.ag/swap/v1", 50, 10*time.Second)
	client.SetSimulation(true, 1.0)

	ctx := context.Background()
	inputMint := "So11111111111111111111111111111111111111112"
	outputMint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	userPubkey := "DstF19y19y19y19y19y19y19y19y19y19y19y19y19y"

	txStr, err := client.GetSwapTransaction(ctx, inputMint, outputMint, userPubkey, 1_000_000)
	if err != nil {
		t.Fatalf("GetSwapTransaction in simulation mode: %v", err)
	}

	want := "AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAA=="
	if txStr != want {
		t.Errorf("GetSwapTransaction() = %q, want dummy placeholder %q", txStr, want)
	}
}

func TestGetQuoteSimulationModePassesThroughWhenBuyingWithSOL(t *testing.T) {
	client := NewClient("https://api.jup.ag/swap/v1", 50, time.Second)
	client.SetSimulation(true, 2.5)

	quote, err := client.GetQuote(context.Background(), SOLMint, "someTokenMint", 1_000_000)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.OutAmount != "1000000" {
		t.Errorf("buying OutAmount = %q, want 1:1 passthrough of 1000000", quote.OutAmount)
	}
}

func TestGetQuoteSimulationModeAppliesMultiplierWhenSellingForSOL(t *testing.T) {
	client := NewClient("https://api.jup.ag/swap/v1", 50, time.Second)
	client.SetSimulation(true, 2.0)

	quote, err := client.GetQuote(context.Background(), "someTokenMint", SOLMint, 1_000_000)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.OutAmount != "2000000" {
		t.Errorf("selling OutAmount = %q, want amount * multiplier = 2000000", quote.OutAmount)
	}
}

func TestGetQuoteRoundTripsAgainstRealEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("inputMint"); got != SOLMint {
			t.Errorf("inputMint query param = %q, want %q", got, SOLMint)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"inputMint":"` + SOLMint + `","inAmount":"1000000","outputMint":"mint","outAmount":"500","priceImpactPct":"0.01"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 50, time.Second)
	quote, err := client.GetQuote(context.Background(), SOLMint, "mint", 1_000_000)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.OutAmount != "500" {
		t.Errorf("OutAmount = %q, want 500", quote.OutAmount)
	}
}

func TestGetQuotePropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 50, time.Second)
	if _, err := client.GetQuote(context.Background(), SOLMint, "mint", 1_000_000); err == nil {
		t.Fatal("expected an error for a non-200 quote response")
	}
}
