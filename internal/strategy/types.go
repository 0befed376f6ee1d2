// Package strategy hosts the tagged-union set of trading strategies
// and the capability surface the engine grants them.
package strategy

import (
	"time"

	"solana-strategy-engine/internal/position"
)

// TokenState mirrors the orchestrator's state machine for a mint.
type TokenState string

const (
	StateNew          TokenState = "New"
	StateTradePending TokenState = "TradePending"
	StateSwapped      TokenState = "Swapped"
	StateSelling      TokenState = "Selling"
	StateSold         TokenState = "Sold"
	StateSellFailed   TokenState = "SellFailed"
)

// TokenInfo describes a discovered mint at the moment of discovery.
type TokenInfo struct {
	Mint         string
	Source       string
	DiscoveredAt time.Time
	InitialBuy   float64
	MarketCapSOL float64
}

// Runtime is the capability surface the engine grants a strategy.
// Strategies must not block; Buy/Sell enqueue asynchronously and
// return whether the request was accepted.
type Runtime interface {
	IsNew(mint string) bool
	Status(mint string) (TokenState, bool)
	AllTokens() []TokenInfo
	Buy(mint string) bool
	Sell(mint string) bool
	GetTokenUSDPrice(mint string) (float64, bool)
	GetPriceHistory(mint string) []float64
	PositionSnapshot(mint string) (position.Snapshot, bool)
	Now() time.Time
}

// Strategy is the contract every trading strategy variant implements.
type Strategy interface {
	Name() string
	OnDiscovered(meta TokenInfo, rt Runtime)
	OnTick(rt Runtime)
}

// countSwapped returns the number of mints currently in the Swapped
// state, a common guard for "max concurrently held" checks.
func countSwapped(rt Runtime) int {
	n := 0
	for _, tok := range rt.AllTokens() {
		if st, ok := rt.Status(tok.Mint); ok && st == StateSwapped {
			n++
		}
	}
	return n
}
