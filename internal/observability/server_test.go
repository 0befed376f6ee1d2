package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"solana-strategy-engine/internal/health"
)

func TestMetricsRegistersWithoutPanic(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.BuysTotal.Inc()
	m.OpenPositions.Set(3)

	mf, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mf) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestHealthRouteReportsComponentStatus(t *testing.T) {
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer rpcSrv.Close()

	checker := health.NewChecker(rpcSrv.URL, rpcSrv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	checker.Start(ctx)

	registry := prometheus.NewRegistry()
	srv := NewServer(":0", registry, checker)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
