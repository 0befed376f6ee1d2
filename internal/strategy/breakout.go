package strategy

import "solana-strategy-engine/internal/indicators"

// BreakoutConfig parameterizes the Donchian breakout strategy.
type BreakoutConfig struct {
	Lookback  int
	BufferPct float64
}

// Breakout buys when price closes above the trailing Donchian high by
// more than BufferPct, and sells on the symmetric inverse against the
// Donchian low.
type Breakout struct {
	cfg BreakoutConfig
}

// NewBreakout creates a Breakout strategy with cfg.
func NewBreakout(cfg BreakoutConfig) *Breakout {
	return &Breakout{cfg: cfg}
}

func (b *Breakout) Name() string { return "breakout" }

func (b *Breakout) OnDiscovered(meta TokenInfo, rt Runtime) {}

func (b *Breakout) OnTick(rt Runtime) {
	for _, tok := range rt.AllTokens() {
		history := rt.GetPriceHistory(tok.Mint)
		price, ok := rt.GetTokenUSDPrice(tok.Mint)
		if !ok || len(history) == 0 {
			continue
		}

		state, known := rt.Status(tok.Mint)
		if !known || state != StateSwapped {
			high, ok := indicators.DonchianHigh(history, b.cfg.Lookback)
			if ok && price > high*(1+b.cfg.BufferPct) {
				rt.Buy(tok.Mint)
			}
			continue
		}

		low, ok := indicators.DonchianLow(history, b.cfg.Lookback)
		if ok && price < low*(1-b.cfg.BufferPct) {
			rt.Sell(tok.Mint)
		}
	}
}
