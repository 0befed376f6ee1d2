package strategy

import "sync"

// Engine hosts a single active Strategy and enforces the tie-break
// rule: within one call, at most one Buy and one Sell per mint reach
// the underlying runtime; later calls for an already-handled mint are
// suppressed.
type Engine struct {
	mu     sync.Mutex
	active Strategy
}

// New creates a StrategyEngine hosting active.
func New(active Strategy) *Engine {
	return &Engine{active: active}
}

// Swap replaces the active strategy. Takes effect on the next
// OnDiscovered/OnTick call.
func (e *Engine) Swap(s Strategy) {
	e.mu.Lock()
	e.active = s
	e.mu.Unlock()
}

// OnDiscovered routes a discovery event to the active strategy behind
// a tick-scoped guarded runtime.
func (e *Engine) OnDiscovered(meta TokenInfo, rt Runtime) {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	if active == nil {
		return
	}
	active.OnDiscovered(meta, newTickGuard(rt))
}

// OnTick routes a tick to the active strategy behind a tick-scoped
// guarded runtime.
func (e *Engine) OnTick(rt Runtime) {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	if active == nil {
		return
	}
	active.OnTick(newTickGuard(rt))
}

// tickGuard wraps a Runtime so that only the first Buy and the first
// Sell per mint within this call are forwarded; later calls for the
// same mint are suppressed and return false.
type tickGuard struct {
	Runtime
	mu     sync.Mutex
	bought map[string]bool
	sold   map[string]bool
}

func newTickGuard(rt Runtime) *tickGuard {
	return &tickGuard{Runtime: rt, bought: make(map[string]bool), sold: make(map[string]bool)}
}

func (g *tickGuard) Buy(mint string) bool {
	g.mu.Lock()
	if g.bought[mint] {
		g.mu.Unlock()
		return false
	}
	g.bought[mint] = true
	g.mu.Unlock()
	return g.Runtime.Buy(mint)
}

func (g *tickGuard) Sell(mint string) bool {
	g.mu.Lock()
	if g.sold[mint] {
		g.mu.Unlock()
		return false
	}
	g.sold[mint] = true
	g.mu.Unlock()
	return g.Runtime.Sell(mint)
}
