package strategy

import (
	"testing"
	"time"

	"solana-strategy-engine/internal/position"
)

// fakeRuntime is a minimal, fully scripted Runtime for strategy unit
// tests; it never touches a real engine.
type fakeRuntime struct {
	now     time.Time
	tokens  []TokenInfo
	status  map[string]TokenState
	prices  map[string]float64
	history map[string][]float64
	entries map[string]float64 // mint -> entry price, for pnl-driven snapshots
	entryAt map[string]time.Time

	bought []string
	sold   []string

	buyOK bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		now:     time.Unix(0, 0),
		status:  make(map[string]TokenState),
		prices:  make(map[string]float64),
		history: make(map[string][]float64),
		entries: make(map[string]float64),
		entryAt: make(map[string]time.Time),
		buyOK:   true,
	}
}

func (f *fakeRuntime) IsNew(mint string) bool { return f.status[mint] == "" }

func (f *fakeRuntime) Status(mint string) (TokenState, bool) {
	s, ok := f.status[mint]
	return s, ok
}

func (f *fakeRuntime) AllTokens() []TokenInfo { return f.tokens }

func (f *fakeRuntime) Buy(mint string) bool {
	f.bought = append(f.bought, mint)
	if f.buyOK {
		f.status[mint] = StateSwapped
		f.entries[mint] = f.prices[mint]
		f.entryAt[mint] = f.now
	}
	return f.buyOK
}

func (f *fakeRuntime) Sell(mint string) bool {
	f.sold = append(f.sold, mint)
	f.status[mint] = StateSold
	return true
}

func (f *fakeRuntime) GetTokenUSDPrice(mint string) (float64, bool) {
	p, ok := f.prices[mint]
	return p, ok
}

func (f *fakeRuntime) GetPriceHistory(mint string) []float64 { return f.history[mint] }

func (f *fakeRuntime) PositionSnapshot(mint string) (position.Snapshot, bool) {
	entry, ok := f.entries[mint]
	if !ok {
		return position.Snapshot{}, false
	}
	price := f.prices[mint]
	return position.Snapshot{
		Mint:             mint,
		EntryPrice:       entry,
		CurrentPrice:     price,
		UnrealizedPnLPct: (price - entry) / entry,
		HoldTime:         f.now.Sub(f.entryAt[mint]),
	}, true
}

func (f *fakeRuntime) Now() time.Time { return f.now }

func TestScalperBuyThenProfitTake(t *testing.T) {
	rt := newFakeRuntime()
	rt.tokens = []TokenInfo{{Mint: "A", Source: "PumpFun"}}
	rt.prices["A"] = 1.00

	s := NewShitcoinScalper(ShitcoinScalperConfig{
		MaxHeld:    5,
		ProfitTake: 0.02,
		StopLoss:   0.08,
		MaxHoldMs:  60_000,
	})

	s.OnDiscovered(TokenInfo{Mint: "A", Source: "PumpFun"}, rt)
	if len(rt.bought) != 1 {
		t.Fatalf("expected one buy at discovery, got %d", len(rt.bought))
	}

	rt.prices["A"] = 1.005
	rt.now = rt.now.Add(time.Second)
	s.OnTick(rt)
	if len(rt.sold) != 0 {
		t.Fatalf("expected no sell yet, pnl below profit_take")
	}

	rt.prices["A"] = 1.021
	rt.now = rt.now.Add(time.Second)
	s.OnTick(rt)
	if len(rt.sold) != 1 {
		t.Fatalf("expected exactly one sell at profit_take, got %d", len(rt.sold))
	}
	if rt.status["A"] != StateSold {
		t.Fatalf("expected final state Sold, got %v", rt.status["A"])
	}
}

func TestRSIOversoldTriggersBuy(t *testing.T) {
	rt := newFakeRuntime()
	rt.tokens = []TokenInfo{{Mint: "B"}}

	s := NewRSIStrategy(RSIConfig{Period: 14, Oversold: 30, Overbought: 70})
	s.OnDiscovered(TokenInfo{Mint: "B"}, rt)

	price := 1.0
	for i := 0; i < 16; i++ {
		rt.prices["B"] = price
		s.OnTick(rt)
		price -= 0.02
		rt.now = rt.now.Add(time.Second)
	}

	if len(rt.bought) != 1 {
		t.Fatalf("expected exactly one buy once RSI falls below oversold, got %d", len(rt.bought))
	}
}

func TestTickGuardSuppressesDuplicateBuyAndSell(t *testing.T) {
	rt := newFakeRuntime()
	rt.tokens = []TokenInfo{{Mint: "A"}, {Mint: "A"}} // duplicate entries in one tick's token list
	rt.prices["A"] = 1.0

	guard := newTickGuard(rt)
	if !guard.Buy("A") {
		t.Fatal("expected first buy to succeed")
	}
	if guard.Buy("A") {
		t.Fatal("expected second buy in same tick to be suppressed")
	}
	if len(rt.bought) != 1 {
		t.Fatalf("expected underlying runtime to see exactly one buy, got %d", len(rt.bought))
	}
}
