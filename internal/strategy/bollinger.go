package strategy

import "solana-strategy-engine/internal/indicators"

// BollingerConfig parameterizes BollingerMeanReversion.
type BollingerConfig struct {
	Period int
	K      float64
}

// BollingerMeanReversion buys on a lower-band touch and exits once
// price reverts to the band's midline.
type BollingerMeanReversion struct {
	cfg BollingerConfig
}

// NewBollingerMeanReversion creates the strategy with cfg.
func NewBollingerMeanReversion(cfg BollingerConfig) *BollingerMeanReversion {
	return &BollingerMeanReversion{cfg: cfg}
}

func (b *BollingerMeanReversion) Name() string { return "bollinger_mean_reversion" }

func (b *BollingerMeanReversion) OnDiscovered(meta TokenInfo, rt Runtime) {}

func (b *BollingerMeanReversion) OnTick(rt Runtime) {
	for _, tok := range rt.AllTokens() {
		history := rt.GetPriceHistory(tok.Mint)
		price, ok := rt.GetTokenUSDPrice(tok.Mint)
		if !ok {
			continue
		}
		bands, ok := indicators.BollingerBands(history, b.cfg.Period, b.cfg.K)
		if !ok {
			continue
		}

		state, known := rt.Status(tok.Mint)
		if !known || state != StateSwapped {
			if price <= bands.Lower {
				rt.Buy(tok.Mint)
			}
			continue
		}

		if price >= bands.Mid {
			rt.Sell(tok.Mint)
		}
	}
}
