package position

import "testing"

func TestAddQuantityImmutable(t *testing.T) {
	m := NewManager(5)
	snap := m.Add("mintA", 2.0, 10.0)
	if snap.Quantity != 5.0 {
		t.Fatalf("quantity = %v, want 5.0", snap.Quantity)
	}

	m.Update("mintA", 3.0)
	snap2, _ := m.Update("mintA", 4.0)
	if snap2.Quantity != 5.0 {
		t.Fatalf("quantity changed after update: %v", snap2.Quantity)
	}
}

func TestPeakTroughOrdering(t *testing.T) {
	m := NewManager(5)
	m.Add("m", 1.0, 10.0)
	m.Update("m", 1.5)
	m.Update("m", 0.8)
	snap, _ := m.Update("m", 1.2)

	if snap.Peak < snap.CurrentPrice || snap.CurrentPrice < snap.Trough {
		t.Fatalf("invariant violated: peak=%v current=%v trough=%v", snap.Peak, snap.CurrentPrice, snap.Trough)
	}
	if snap.Peak != 1.5 {
		t.Fatalf("peak = %v, want 1.5", snap.Peak)
	}
	if snap.Trough != 0.8 {
		t.Fatalf("trough = %v, want 0.8", snap.Trough)
	}
}

func TestUnrealizedPnLPct(t *testing.T) {
	m := NewManager(5)
	m.Add("m", 2.0, 10.0)
	snap, _ := m.Update("m", 2.2)
	want := 0.1
	if diff := snap.UnrealizedPnLPct - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("pnl pct = %v, want %v", snap.UnrealizedPnLPct, want)
	}
}

func TestTrailingStopMonotonic(t *testing.T) {
	m := NewManager(5)
	m.Add("m", 1.0, 10.0)
	p, _ := m.Get("m")

	p.ArmTrailing(0.95)
	p.RaiseTrailing(0.90) // lower, must be ignored
	snap := p.Snapshot()
	if snap.TrailingStopPrice != 0.95 {
		t.Fatalf("trailing stop lowered: %v", snap.TrailingStopPrice)
	}

	p.RaiseTrailing(1.05)
	snap = p.Snapshot()
	if snap.TrailingStopPrice != 1.05 {
		t.Fatalf("trailing stop did not raise: %v", snap.TrailingStopPrice)
	}
}

func TestAtMostOnePositionPerMint(t *testing.T) {
	m := NewManager(5)
	m.Add("m", 1.0, 10.0)
	m.Add("m", 1.0, 10.0) // overwrite, not duplicate
	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
}

func TestRemoveAndHas(t *testing.T) {
	m := NewManager(5)
	m.Add("m", 1.0, 10.0)
	if !m.Has("m") {
		t.Fatal("expected Has to be true")
	}
	if _, ok := m.Remove("m"); !ok {
		t.Fatal("expected Remove to find position")
	}
	if m.Has("m") {
		t.Fatal("expected Has to be false after remove")
	}
}

func TestRingBufferBounded(t *testing.T) {
	m := NewManager(2) // historyCap = 4
	m.Add("m", 1.0, 10.0)
	for i := 0; i < 10; i++ {
		m.Update("m", float64(i))
	}
	snap, _ := m.Update("m", 99)
	if len(snap.PriceHistory) > 4 {
		t.Fatalf("history grew unbounded: len=%d", len(snap.PriceHistory))
	}
}
