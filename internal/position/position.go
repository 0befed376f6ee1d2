// Package position tracks open positions opened against Swapped tokens:
// unrealized P&L, peak/trough excursion, and a bounded price history
// used to derive volatility for the risk engine.
package position

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// staleAfter is the safety-net eviction window for orphaned positions.
const staleAfter = time.Hour

// ringBuffer is a fixed-capacity FIFO of float64 samples with O(1)
// amortized push-and-evict.
type ringBuffer struct {
	buf   []float64
	head  int
	count int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]float64, capacity)}
}

func (r *ringBuffer) push(v float64) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = v
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

func (r *ringBuffer) values() []float64 {
	out := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Position is 1:1 with a Swapped token. All mutation goes through its
// methods, which hold an internal lock; callers outside the owning
// PositionManager should treat Snapshot() as the read surface.
type Position struct {
	mu sync.RWMutex

	Mint      string
	EntryPrice float64
	EntryTime  time.Time
	AmountUSD  float64
	quantity   float64 // immutable after creation

	currentPrice float64
	peak         float64
	trough       float64
	history      *ringBuffer
	volatility   float64

	trailingStopPrice float64
	trailingArmed     bool
	breakevenArmed    bool
}

// Snapshot is an immutable, lock-free read view of a Position.
type Snapshot struct {
	Mint              string
	EntryPrice        float64
	EntryTime         time.Time
	AmountUSD         float64
	Quantity          float64
	CurrentPrice      float64
	Peak              float64
	Trough            float64
	Volatility        float64
	TrailingStopPrice float64
	TrailingArmed     bool
	BreakevenArmed    bool
	UnrealizedPnLPct  float64
	HoldTime          time.Duration
	PriceHistory      []float64
}

func newPosition(mint string, entryPrice, amountUSD float64, historyCap int) *Position {
	return &Position{
		Mint:         mint,
		EntryPrice:   entryPrice,
		EntryTime:    time.Now(),
		AmountUSD:    amountUSD,
		quantity:     amountUSD / entryPrice,
		currentPrice: entryPrice,
		peak:         entryPrice,
		trough:       entryPrice,
		history:      newRingBuffer(historyCap),
	}
}

// Update pushes a new price sample, recomputes peak/trough, and
// refreshes volatility (population stddev of log-returns over the
// trailing lookback window) once at least two samples are present.
func (p *Position) Update(currentPrice float64, volatilityLookback int) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentPrice = currentPrice
	p.history.push(currentPrice)

	if currentPrice > p.peak {
		p.peak = currentPrice
	}
	if currentPrice < p.trough {
		p.trough = currentPrice
	}

	values := p.history.values()
	if len(values) >= 2 {
		window := values
		if len(window) > volatilityLookback {
			window = window[len(window)-volatilityLookback:]
		}
		p.volatility = logReturnStdDev(window)
	}

	return p.snapshotLocked()
}

// ArmTrailing sets the trailing stop at level and marks it armed. Once
// armed, subsequent raises must go through RaiseTrailing to preserve
// monotonicity.
func (p *Position) ArmTrailing(level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trailingStopPrice = level
	p.trailingArmed = true
}

// RaiseTrailing raises the trailing stop if level is higher than the
// current stop; it never lowers it.
func (p *Position) RaiseTrailing(level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.trailingArmed || level > p.trailingStopPrice {
		p.trailingStopPrice = level
	}
}

// ArmBreakeven marks the breakeven guard as armed.
func (p *Position) ArmBreakeven() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakevenArmed = true
}

// Snapshot returns a consistent read-only copy of the position.
func (p *Position) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Position) snapshotLocked() Snapshot {
	return Snapshot{
		Mint:              p.Mint,
		EntryPrice:        p.EntryPrice,
		EntryTime:         p.EntryTime,
		AmountUSD:         p.AmountUSD,
		Quantity:          p.quantity,
		CurrentPrice:      p.currentPrice,
		Peak:              p.peak,
		Trough:            p.trough,
		Volatility:        p.volatility,
		TrailingStopPrice: p.trailingStopPrice,
		TrailingArmed:     p.trailingArmed,
		BreakevenArmed:    p.breakevenArmed,
		UnrealizedPnLPct:  (p.currentPrice - p.EntryPrice) / p.EntryPrice,
		HoldTime:          time.Since(p.EntryTime),
		PriceHistory:      p.history.values(),
	}
}

func logReturnStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(values[i]/values[i-1]))
	}
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// Manager owns every open Position, keyed by mint. All mutating
// operations are safe for concurrent use; reads return Snapshots so
// callers never observe a half-mutated Position.
type Manager struct {
	mu                 sync.RWMutex
	positions          map[string]*Position
	volatilityLookback int
	historyCap         int
}

// NewManager creates a position manager. volatilityLookbackPeriods
// bounds both the volatility window and (doubled) the retained price
// history ring buffer per position.
func NewManager(volatilityLookbackPeriods int) *Manager {
	if volatilityLookbackPeriods < 1 {
		volatilityLookbackPeriods = 1
	}
	return &Manager{
		positions:          make(map[string]*Position),
		volatilityLookback: volatilityLookbackPeriods,
		historyCap:         volatilityLookbackPeriods * 2,
	}
}

// Add creates and stores a new position. Returns the snapshot of the
// newly created position.
func (m *Manager) Add(mint string, entryPrice, amountUSD float64) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := newPosition(mint, entryPrice, amountUSD, m.historyCap)
	m.positions[mint] = p
	log.Debug().Str("mint", mint).Float64("entryPrice", entryPrice).Float64("amountUsd", amountUSD).Msg("position opened")
	return p.Snapshot()
}

// Update feeds a new price into an existing position. Returns
// (snapshot, true) if the position exists, else (zero, false).
func (m *Manager) Update(mint string, currentPrice float64) (Snapshot, bool) {
	m.mu.RLock()
	p, ok := m.positions[mint]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return p.Update(currentPrice, m.volatilityLookback), true
}

// Get returns the position handle for direct mutation (trailing stop
// arm/raise) by components that own that responsibility (RiskEngine).
func (m *Manager) Get(mint string) (*Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[mint]
	return p, ok
}

// Remove deletes and returns the final snapshot of a position, if any.
func (m *Manager) Remove(mint string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[mint]
	if !ok {
		return Snapshot{}, false
	}
	delete(m.positions, mint)
	return p.Snapshot(), true
}

// Has reports whether a position is currently open for mint.
func (m *Manager) Has(mint string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[mint]
	return ok
}

// Count returns the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// All returns a snapshot of every open position, in no particular
// order.
func (m *Manager) All() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p.Snapshot())
	}
	return out
}

// Cleanup evicts positions whose entry time is older than one hour, a
// safety net for orphaned state that never reached a terminal
// transition. Returns the mints removed.
func (m *Manager) Cleanup() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	now := time.Now()
	for mint, p := range m.positions {
		if now.Sub(p.Snapshot().EntryTime) > staleAfter {
			delete(m.positions, mint)
			removed = append(removed, mint)
		}
	}
	if len(removed) > 0 {
		log.Warn().Strs("mints", removed).Msg("evicted stale positions")
	}
	return removed
}
