package risk

import (
	"solana-strategy-engine/internal/position"
)

// Engine composes RugDetector, AntiChopFilter, TimeBasedExitManager and
// TrailingStop into a single per-tick evaluation. Exactly one forced
// action is returned, chosen by priority: liquidity rug > rug-critical
// > time-to-flat > hard time-based exit > trailing stop. Anything
// below that priority is left for the strategy's own sell logic.
type Engine struct {
	cfg      Config
	Rug      *RugDetector
	Chop     *AntiChopFilter
	TimeExit *TimeBasedExitManager
	Trailing *TrailingStop
}

// NewEngine builds a risk Engine from a single Config, wiring each
// sub-detector with its slice of the config.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:      cfg,
		Rug:      NewRugDetector(cfg.Rug),
		Chop:     NewAntiChopFilter(cfg.Chop),
		TimeExit: NewTimeBasedExitManager(cfg.TimeExit),
		Trailing: NewTrailingStop(cfg.Trailing),
	}
}

// Evaluate consults every detector for mint given its latest position
// snapshot and a just-observed (price, volume) tick, and returns the
// single highest-priority recommendation.
func (e *Engine) Evaluate(mint string, pos position.Snapshot, volume float64) Recommendation {
	rug := e.Rug.Observe(mint, pos.CurrentPrice, volume)
	chop := e.Chop.Evaluate(mint, pos.PriceHistory)

	if rug.LiquidityRug {
		return Recommendation{Sell: true, Reason: "liquidity_rug", Priority: UrgencyCritical, Chop: chop}
	}
	if rug.IsRug && rug.Urgency == UrgencyCritical {
		return Recommendation{Sell: true, Reason: "rug_critical", Priority: UrgencyCritical, Chop: chop}
	}

	if e.TimeExit.ObserveFlat(mint, pos.PriceHistory) {
		return Recommendation{Sell: true, Reason: "time_to_flat", Priority: UrgencyHigh, Chop: chop}
	}

	if e.cfg.TimeExit.Mode != "" && e.TimeExit.ShouldExit(pos.UnrealizedPnLPct, pos.HoldTime) {
		return Recommendation{Sell: true, Reason: "hard_time_exit", Priority: UrgencyMedium, Chop: chop}
	}

	if level, shouldArm := e.Trailing.ArmLevel(pos.UnrealizedPnLPct, pos.Peak); shouldArm && !pos.TrailingArmed {
		// Caller arms the position's trailing stop via Position.ArmTrailing;
		// the engine itself does not mutate Position state.
		_ = level
	}
	if pos.TrailingArmed && e.Trailing.Triggered(pos.CurrentPrice, pos.TrailingStopPrice, pos.TrailingArmed) {
		return Recommendation{Sell: true, Reason: "trailing_stop", Priority: UrgencyLow, Chop: chop}
	}

	return Recommendation{Sell: false, Chop: chop}
}
