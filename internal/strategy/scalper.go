package strategy

// ShitcoinScalperConfig parameterizes ShitcoinScalper.
type ShitcoinScalperConfig struct {
	MaxHeld                 int
	ProfitTake              float64
	StopLoss                float64
	MaxHoldMs               int64
	MinProfitBeforeTrailing float64
	TrailingPct             float64
}

// ShitcoinScalper buys freshly discovered mints up to a held-position
// cap and exits on profit target, stop loss, max hold, or a trailing
// stop once armed.
type ShitcoinScalper struct {
	cfg ShitcoinScalperConfig
}

// NewShitcoinScalper creates a ShitcoinScalper with cfg.
func NewShitcoinScalper(cfg ShitcoinScalperConfig) *ShitcoinScalper {
	return &ShitcoinScalper{cfg: cfg}
}

func (s *ShitcoinScalper) Name() string { return "shitcoin_scalper" }

func (s *ShitcoinScalper) OnDiscovered(meta TokenInfo, rt Runtime) {
	if !rt.IsNew(meta.Mint) {
		return
	}
	if countSwapped(rt) >= s.cfg.MaxHeld {
		return
	}
	rt.Buy(meta.Mint)
}

func (s *ShitcoinScalper) OnTick(rt Runtime) {
	for _, tok := range rt.AllTokens() {
		state, ok := rt.Status(tok.Mint)
		if !ok || state != StateSwapped {
			continue
		}
		pos, ok := rt.PositionSnapshot(tok.Mint)
		if !ok {
			continue
		}

		pnl := pos.UnrealizedPnLPct
		holdMs := pos.HoldTime.Milliseconds()

		switch {
		case pnl >= s.cfg.ProfitTake:
			rt.Sell(tok.Mint)
		case pnl <= -s.cfg.StopLoss:
			rt.Sell(tok.Mint)
		case s.cfg.MaxHoldMs > 0 && holdMs >= s.cfg.MaxHoldMs:
			rt.Sell(tok.Mint)
		case pos.TrailingArmed && pos.CurrentPrice < pos.TrailingStopPrice:
			rt.Sell(tok.Mint)
		}
	}
}
