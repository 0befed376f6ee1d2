package risk

import (
	"sync"
	"time"

	"solana-strategy-engine/internal/indicators"
)

type mintTimeExitState struct {
	flatSince time.Time
	isFlat    bool
}

// TimeBasedExitManager scales a position's effective max-hold duration
// by its current P&L and flags prolonged flat (non-moving) periods.
type TimeBasedExitManager struct {
	mu    sync.Mutex
	cfg   TimeExitConfig
	state map[string]*mintTimeExitState
}

// NewTimeBasedExitManager creates a manager with the given config.
func NewTimeBasedExitManager(cfg TimeExitConfig) *TimeBasedExitManager {
	return &TimeBasedExitManager{
		cfg:   cfg,
		state: make(map[string]*mintTimeExitState),
	}
}

// EffectiveMaxHold returns the scaled max-hold duration for a position
// currently at pnlPct unrealized P&L.
func (m *TimeBasedExitManager) EffectiveMaxHold(pnlPct float64) time.Duration {
	switch {
	case pnlPct < -m.cfg.QuickExitLossPct:
		return m.cfg.QuickExitTime
	case pnlPct > 0:
		return time.Duration(float64(m.cfg.MaxHold) * m.cfg.ProfitReduction)
	default:
		return time.Duration(float64(m.cfg.MaxHold) * m.cfg.LossExtension)
	}
}

// ShouldExit reports whether the position has exceeded its effective
// max hold given the configured mode.
func (m *TimeBasedExitManager) ShouldExit(pnlPct float64, holdTime time.Duration) bool {
	switch m.cfg.Mode {
	case TimeExitProfitOnly:
		if pnlPct <= 0 {
			return false
		}
	case TimeExitLossOnly:
		if pnlPct >= 0 {
			return false
		}
	}
	return holdTime >= m.EffectiveMaxHold(pnlPct)
}

// ObserveFlat updates the flat-period tracker for mint using the
// trailing window of prices, returning true once a flat period has
// persisted at least TimeToFlat.
func (m *TimeBasedExitManager) ObserveFlat(mint string, priceHistory []float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.state[mint]
	if !ok {
		st = &mintTimeExitState{}
		m.state[mint] = st
	}

	window := priceHistory
	if len(window) > 10 {
		window = window[len(window)-10:]
	}

	flatNow := rangeOf(window) <= m.cfg.FlatRangeThreshold

	now := time.Now()
	if !flatNow {
		st.isFlat = false
		st.flatSince = time.Time{}
		return false
	}
	if !st.isFlat {
		st.isFlat = true
		st.flatSince = now
		return false
	}
	return now.Sub(st.flatSince) >= m.cfg.TimeToFlat
}

func rangeOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	high, _ := indicators.DonchianHigh(values, len(values))
	low, _ := indicators.DonchianLow(values, len(values))
	return high - low
}
