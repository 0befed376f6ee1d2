package strategy

import "solana-strategy-engine/internal/indicators"

// MomentumConfig parameterizes the Momentum strategy.
type MomentumConfig struct {
	Period        int
	BuyThreshold  float64
	SellThreshold float64
	MaxHoldMs     int64
}

// Momentum buys on a strong positive rate-of-change and sells on a
// strong negative one or once MaxHoldMs has elapsed.
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum creates a Momentum strategy with cfg.
func NewMomentum(cfg MomentumConfig) *Momentum {
	return &Momentum{cfg: cfg}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) OnDiscovered(meta TokenInfo, rt Runtime) {}

func (m *Momentum) OnTick(rt Runtime) {
	for _, tok := range rt.AllTokens() {
		history := rt.GetPriceHistory(tok.Mint)
		roc, ok := indicators.ROC(history, m.cfg.Period)
		if !ok {
			continue
		}

		state, known := rt.Status(tok.Mint)
		if !known || state != StateSwapped {
			if roc > m.cfg.BuyThreshold {
				rt.Buy(tok.Mint)
			}
			continue
		}

		if roc < -m.cfg.SellThreshold {
			rt.Sell(tok.Mint)
			continue
		}
		if m.cfg.MaxHoldMs > 0 {
			if pos, ok := rt.PositionSnapshot(tok.Mint); ok && pos.HoldTime.Milliseconds() >= m.cfg.MaxHoldMs {
				rt.Sell(tok.Mint)
			}
		}
	}
}
