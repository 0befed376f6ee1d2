package strategy

import "solana-strategy-engine/internal/indicators"

// TechnicalCombinedConfig parameterizes TechnicalCombined.
type TechnicalCombinedConfig struct {
	SMAFastPeriod     int
	SMASlowPeriod     int
	RSIPeriod         int
	BreakoutLookback  int
	WeightTrend       float64
	WeightRSI         float64
	WeightBreakout    float64
	DecisionThreshold float64
}

// TechnicalCombined blends an SMA-trend signal, an RSI signal and a
// breakout signal into a single weighted score, comparing the result
// against a decision threshold for both entry and exit.
type TechnicalCombined struct {
	cfg TechnicalCombinedConfig
}

// NewTechnicalCombined creates the strategy with cfg.
func NewTechnicalCombined(cfg TechnicalCombinedConfig) *TechnicalCombined {
	return &TechnicalCombined{cfg: cfg}
}

func (c *TechnicalCombined) Name() string { return "technical_combined" }

func (c *TechnicalCombined) OnDiscovered(meta TokenInfo, rt Runtime) {}

func (c *TechnicalCombined) OnTick(rt Runtime) {
	for _, tok := range rt.AllTokens() {
		history := rt.GetPriceHistory(tok.Mint)
		score, ok := c.score(history)
		if !ok {
			continue
		}

		state, known := rt.Status(tok.Mint)
		if !known || state != StateSwapped {
			if score >= c.cfg.DecisionThreshold {
				rt.Buy(tok.Mint)
			}
			continue
		}

		if score <= -c.cfg.DecisionThreshold {
			rt.Sell(tok.Mint)
		}
	}
}

// score returns a value in roughly [-1, 1]: positive favors buying,
// negative favors selling.
func (c *TechnicalCombined) score(history []float64) (float64, bool) {
	fast, fastOK := indicators.SMA(history, c.cfg.SMAFastPeriod)
	slow, slowOK := indicators.SMA(history, c.cfg.SMASlowPeriod)
	rsi, rsiOK := indicators.RSI(history, c.cfg.RSIPeriod)
	high, highOK := indicators.DonchianHigh(history, c.cfg.BreakoutLookback)

	if !fastOK || !slowOK || !rsiOK || !highOK || slow == 0 || len(history) == 0 {
		return 0, false
	}

	trendSignal := (fast - slow) / slow
	rsiSignal := (rsi - 50) / 50
	last := history[len(history)-1]
	breakoutSignal := (last - high) / high

	total := c.cfg.WeightTrend*clampUnit(trendSignal) +
		c.cfg.WeightRSI*clampUnit(rsiSignal) +
		c.cfg.WeightBreakout*clampUnit(breakoutSignal)

	return total, true
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
