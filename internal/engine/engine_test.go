package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-strategy-engine/internal/feed"
	"solana-strategy-engine/internal/order"
	"solana-strategy-engine/internal/position"
	"solana-strategy-engine/internal/strategy"
)

type fakeFeed struct {
	mu       sync.Mutex
	priceCb  feed.PriceHandler
	discCb   feed.DiscoveryHandler
	tracked  map[string]bool
}

func newFakeFeed() *fakeFeed { return &fakeFeed{tracked: make(map[string]bool)} }

func (f *fakeFeed) OnPriceUpdate(h feed.PriceHandler)    { f.mu.Lock(); f.priceCb = h; f.mu.Unlock() }
func (f *fakeFeed) OnDiscovery(h feed.DiscoveryHandler)  { f.mu.Lock(); f.discCb = h; f.mu.Unlock() }
func (f *fakeFeed) TrackToken(mint string) error         { f.mu.Lock(); f.tracked[mint] = true; f.mu.Unlock(); return nil }
func (f *fakeFeed) UntrackToken(mint string) error       { f.mu.Lock(); delete(f.tracked, mint); f.mu.Unlock(); return nil }

func (f *fakeFeed) discover(evt feed.DiscoveryEvent) {
	f.mu.Lock()
	cb := f.discCb
	f.mu.Unlock()
	cb(evt)
}

func (f *fakeFeed) push(evt feed.PriceEvent) {
	f.mu.Lock()
	cb := f.priceCb
	f.mu.Unlock()
	cb(evt)
}

func newTestEngineWithConfig(t *testing.T, f *fakeFeed, cfg Config, buyExec, sellExec order.Executor) *TradingEngine {
	t.Helper()
	if buyExec == nil {
		buyExec = func(ctx context.Context, req order.Request) (order.Result, error) {
			return order.Result{Status: order.StatusFilled, ExecutedPrice: decimal.NewFromFloat(1.0)}, nil
		}
	}
	if sellExec == nil {
		sellExec = func(ctx context.Context, req order.Request) (order.Result, error) {
			return order.Result{Status: order.StatusFilled, ExecutedPrice: decimal.NewFromFloat(1.0)}, nil
		}
	}
	deps := Deps{
		PriceFeed:     f,
		DiscoveryFeed: f,
		Positions:     position.NewManager(20),
		BuyExecutor:   buyExec,
		SellExecutor:  sellExec,
	}
	e := New(cfg, deps)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { e.Stop() })
	return e
}

func newTestEngine(t *testing.T, f *fakeFeed, buyExec, sellExec order.Executor) *TradingEngine {
	t.Helper()
	return newTestEngineWithConfig(t, f, Config{
		MaxPositions:      10,
		MaxConcurrentBuys: 10,
		SolAmountPerTrade: 1,
	}, buyExec, sellExec)
}

func TestBuyThenSellTransitionsStateMachine(t *testing.T) {
	f := newFakeFeed()
	e := newTestEngine(t, f, nil, nil)

	f.discover(feed.DiscoveryEvent{Mint: "mintA", Source: "PumpFun"})

	waitForStatus(t, e, "mintA", strategy.StateNew)

	if !e.Buy("mintA") {
		t.Fatal("Buy returned false")
	}
	waitForStatus(t, e, "mintA", strategy.StateSwapped)

	if !e.Sell("mintA") {
		t.Fatal("Sell returned false")
	}
	waitForStatus(t, e, "mintA", strategy.StateSold)
}

func TestBuyRejectedWhenBlocked(t *testing.T) {
	f := newFakeFeed()
	e := newTestEngine(t, f, nil, nil)
	e.SetBlockBuy(true)

	f.discover(feed.DiscoveryEvent{Mint: "mintB"})
	waitForStatus(t, e, "mintB", strategy.StateNew)

	if e.Buy("mintB") {
		t.Fatal("Buy should be rejected while blocked")
	}
}

func TestBuyRejectedAtMaxPositions(t *testing.T) {
	f := newFakeFeed()
	e := newTestEngineWithConfig(t, f, Config{
		MaxPositions:      1,
		MaxConcurrentBuys: 10,
		SolAmountPerTrade: 1,
	}, nil, nil)

	f.discover(feed.DiscoveryEvent{Mint: "m1"})
	f.discover(feed.DiscoveryEvent{Mint: "m2"})
	waitForStatus(t, e, "m1", strategy.StateNew)
	waitForStatus(t, e, "m2", strategy.StateNew)

	if !e.Buy("m1") {
		t.Fatal("first buy should succeed")
	}
	waitForStatus(t, e, "m1", strategy.StateSwapped)

	if e.Buy("m2") {
		t.Fatal("second buy should be rejected at max_positions")
	}
}

func TestSellFailureReturnsToSwapped(t *testing.T) {
	f := newFakeFeed()
	failingSell := func(ctx context.Context, req order.Request) (order.Result, error) {
		return order.Result{Status: order.StatusRejected}, nil
	}
	e := newTestEngine(t, f, nil, failingSell)

	f.discover(feed.DiscoveryEvent{Mint: "mintC"})
	waitForStatus(t, e, "mintC", strategy.StateNew)
	e.Buy("mintC")
	waitForStatus(t, e, "mintC", strategy.StateSwapped)

	e.Sell("mintC")
	waitForStatus(t, e, "mintC", strategy.StateSwapped)
}

func TestDuplicateDiscoveryIgnored(t *testing.T) {
	f := newFakeFeed()
	e := newTestEngine(t, f, nil, nil)

	f.discover(feed.DiscoveryEvent{Mint: "mintD", Source: "PumpFun"})
	waitForStatus(t, e, "mintD", strategy.StateNew)
	f.discover(feed.DiscoveryEvent{Mint: "mintD", Source: "Boosted"})

	time.Sleep(20 * time.Millisecond)
	if len(e.AllTokens()) != 1 {
		t.Fatalf("expected exactly one tracked token, got %d", len(e.AllTokens()))
	}
}

func waitForStatus(t *testing.T, e *TradingEngine, mint string, want strategy.TokenState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := e.Status(mint); ok && st == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := e.Status(mint)
	t.Fatalf("mint %s: status = %v, want %v", mint, got, want)
}
