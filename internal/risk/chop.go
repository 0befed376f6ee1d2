package risk

import (
	"sync"
	"time"

	"solana-strategy-engine/internal/indicators"
)

// ChopSignal is the current chop-mitigation state for a mint.
type ChopSignal struct {
	Choppy bool
	Action ChopAction
	Until  time.Time // for ChopActionPause
	Factor float64   // for ReduceSize/TightenStops/FilterSignals
}

type mintChopState struct {
	consecutive int
	lastDetect  time.Time
	pausedUntil time.Time
}

// AntiChopFilter detects non-trending, high-range-to-displacement
// market conditions and recommends a mitigating action.
type AntiChopFilter struct {
	mu    sync.Mutex
	cfg   ChopConfig
	state map[string]*mintChopState
}

// NewAntiChopFilter creates a filter with the given config.
func NewAntiChopFilter(cfg ChopConfig) *AntiChopFilter {
	return &AntiChopFilter{
		cfg:   cfg,
		state: make(map[string]*mintChopState),
	}
}

// Evaluate computes the choppiness index over priceHistory and updates
// mint's consecutive-detection streak, returning the recommended
// action. A flat series (zero choppiness) never triggers chop.
func (f *AntiChopFilter) Evaluate(mint string, priceHistory []float64) ChopSignal {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.state[mint]
	if !ok {
		st = &mintChopState{}
		f.state[mint] = st
	}

	now := time.Now()
	if now.Before(st.pausedUntil) {
		return ChopSignal{Choppy: true, Action: ChopActionPause, Until: st.pausedUntil}
	}

	choppiness := indicators.Choppiness(priceHistory)
	if choppiness <= f.cfg.ChoppyThreshold {
		st.consecutive = 0
		return ChopSignal{Choppy: false, Action: ChopActionNone}
	}

	st.consecutive++
	st.lastDetect = now

	if st.consecutive > f.cfg.MaxConsecutive {
		st.pausedUntil = now.Add(f.cfg.RecoveryWait)
		return ChopSignal{Choppy: true, Action: ChopActionPause, Until: st.pausedUntil}
	}

	switch f.cfg.Mode {
	case ChopActionPause:
		until := now.Add(f.cfg.PauseDuration)
		st.pausedUntil = until
		return ChopSignal{Choppy: true, Action: ChopActionPause, Until: until}
	case ChopActionReduceSize:
		return ChopSignal{Choppy: true, Action: ChopActionReduceSize, Factor: 0.5}
	case ChopActionTightenStops:
		return ChopSignal{Choppy: true, Action: ChopActionTightenStops, Factor: 0.7}
	case ChopActionFilterSignals:
		return ChopSignal{Choppy: true, Action: ChopActionFilterSignals, Factor: 0.7}
	default:
		return ChopSignal{Choppy: true, Action: ChopActionNone}
	}
}

// TradingPermitted reports whether mint is past its recovery wait
// (or was never paused).
func (f *AntiChopFilter) TradingPermitted(mint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.state[mint]
	if !ok {
		return true
	}
	return time.Now().After(st.pausedUntil) && time.Since(st.lastDetect) > f.cfg.RecoveryWait
}
