package risk

// TrailingStop arms and monotonically raises a trailing-stop level for
// a long position once minimum profit is reached, against the
// position's own peak tracking.
type TrailingStop struct {
	cfg TrailingConfig
}

// NewTrailingStop creates a trailing-stop evaluator with the given
// config.
func NewTrailingStop(cfg TrailingConfig) *TrailingStop {
	return &TrailingStop{cfg: cfg}
}

// ArmLevel returns the stop level to arm at, given the position's
// current peak, once pnlPct has crossed MinProfitBeforeTrailing. The
// second return value is false if the stop should not arm yet.
func (t *TrailingStop) ArmLevel(pnlPct, peak float64) (float64, bool) {
	if pnlPct < t.cfg.MinProfitBeforeTrailing {
		return 0, false
	}
	return peak * (1 - t.cfg.TrailingPct), true
}

// RaiseLevel returns the candidate stop level for a new peak. Callers
// only need to apply it through Position.RaiseTrailing, which already
// enforces monotonicity; this is a convenience for callers that want
// the raw number.
func (t *TrailingStop) RaiseLevel(peak float64) float64 {
	return peak * (1 - t.cfg.TrailingPct)
}

// Triggered reports whether currentPrice has fallen below the armed
// stop.
func (t *TrailingStop) Triggered(currentPrice, stopPrice float64, armed bool) bool {
	return armed && currentPrice < stopPrice
}
