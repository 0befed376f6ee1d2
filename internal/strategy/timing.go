package strategy

import (
	"sync"
	"time"
)

// Immediate forwards discovery to inner without delay. It is the
// identity timing variant; the other variants in this file wrap an
// inner Strategy with a different entry-timing policy while leaving
// OnTick (and therefore exit logic) untouched.
type Immediate struct {
	Inner Strategy
}

func NewImmediate(inner Strategy) *Immediate { return &Immediate{Inner: inner} }

func (i *Immediate) Name() string { return "immediate_entry(" + i.Inner.Name() + ")" }

func (i *Immediate) OnDiscovered(meta TokenInfo, rt Runtime) { i.Inner.OnDiscovered(meta, rt) }

func (i *Immediate) OnTick(rt Runtime) { i.Inner.OnTick(rt) }

// DelayedEntry forwards discovery to inner only after Delay has
// elapsed, evaluated on ticks rather than a timer so it never blocks.
type DelayedEntry struct {
	Inner Strategy
	Delay time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewDelayedEntry(inner Strategy, delay time.Duration) *DelayedEntry {
	return &DelayedEntry{Inner: inner, Delay: delay, pending: make(map[string]time.Time)}
}

func (d *DelayedEntry) Name() string { return "delayed_entry(" + d.Inner.Name() + ")" }

func (d *DelayedEntry) OnDiscovered(meta TokenInfo, rt Runtime) {
	d.mu.Lock()
	d.pending[meta.Mint] = rt.Now().Add(d.Delay)
	d.mu.Unlock()
}

func (d *DelayedEntry) OnTick(rt Runtime) {
	now := rt.Now()
	var ready []string

	d.mu.Lock()
	for mint, at := range d.pending {
		if !now.Before(at) {
			ready = append(ready, mint)
			delete(d.pending, mint)
		}
	}
	d.mu.Unlock()

	for _, mint := range ready {
		d.Inner.OnDiscovered(TokenInfo{Mint: mint}, rt)
	}
	d.Inner.OnTick(rt)
}

// BatchAccumulate collects discovered mints and releases them to inner
// once BatchSize have accumulated or MaxWait has elapsed since the
// oldest pending one, whichever comes first.
type BatchAccumulate struct {
	Inner     Strategy
	BatchSize int
	MaxWait   time.Duration

	mu       sync.Mutex
	batch    []TokenInfo
	oldestAt time.Time
}

func NewBatchAccumulate(inner Strategy, batchSize int, maxWait time.Duration) *BatchAccumulate {
	return &BatchAccumulate{Inner: inner, BatchSize: batchSize, MaxWait: maxWait}
}

func (b *BatchAccumulate) Name() string { return "batch_accumulate(" + b.Inner.Name() + ")" }

func (b *BatchAccumulate) OnDiscovered(meta TokenInfo, rt Runtime) {
	b.mu.Lock()
	if len(b.batch) == 0 {
		b.oldestAt = rt.Now()
	}
	b.batch = append(b.batch, meta)
	b.mu.Unlock()
}

func (b *BatchAccumulate) OnTick(rt Runtime) {
	now := rt.Now()

	b.mu.Lock()
	var flush []TokenInfo
	if len(b.batch) >= b.BatchSize || (len(b.batch) > 0 && now.Sub(b.oldestAt) >= b.MaxWait) {
		flush = b.batch
		b.batch = nil
	}
	b.mu.Unlock()

	for _, meta := range flush {
		b.Inner.OnDiscovered(meta, rt)
	}
	b.Inner.OnTick(rt)
}

// PumpFunPriority forwards PumpFun-sourced discoveries immediately and
// applies Delay to every other source, letting pump.fun launches
// (the fastest-moving, highest-variance source) enter ahead of slower
// discovery channels.
type PumpFunPriority struct {
	Inner Strategy
	Delay time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewPumpFunPriority(inner Strategy, delay time.Duration) *PumpFunPriority {
	return &PumpFunPriority{Inner: inner, Delay: delay, pending: make(map[string]time.Time)}
}

func (p *PumpFunPriority) Name() string { return "pumpfun_priority(" + p.Inner.Name() + ")" }

func (p *PumpFunPriority) OnDiscovered(meta TokenInfo, rt Runtime) {
	if meta.Source == "PumpFun" {
		p.Inner.OnDiscovered(meta, rt)
		return
	}
	p.mu.Lock()
	p.pending[meta.Mint] = rt.Now().Add(p.Delay)
	p.mu.Unlock()
}

func (p *PumpFunPriority) OnTick(rt Runtime) {
	now := rt.Now()
	var ready []string

	p.mu.Lock()
	for mint, at := range p.pending {
		if !now.Before(at) {
			ready = append(ready, mint)
			delete(p.pending, mint)
		}
	}
	p.mu.Unlock()

	for _, mint := range ready {
		p.Inner.OnDiscovered(TokenInfo{Mint: mint}, rt)
	}
	p.Inner.OnTick(rt)
}
