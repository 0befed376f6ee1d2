package risk

import (
	"testing"
	"time"
)

func TestRugDetectorDetectsSustainedDrop(t *testing.T) {
	cfg := RugConfig{
		WindowSeconds:       60,
		MinTicks:            5,
		TickDropThreshold:   0.10,
		VolumeDropThreshold: 0.3,
		VelocityThreshold:   5,
		ConfidenceThreshold: 0.5,
		LiqDropThreshold:    0.5,
	}
	d := NewRugDetector(cfg)

	price := 1.0
	var last RugAnalysis
	for i := 0; i < 5; i++ {
		price *= 0.88 // -12% each tick
		last = d.Observe("m", price, 1000)
	}

	if !last.IsRug {
		t.Fatalf("expected rug detection, got score=%v", last.Score)
	}
	if last.Urgency != UrgencyHigh && last.Urgency != UrgencyCritical {
		t.Fatalf("expected HIGH or CRITICAL urgency, got %v", last.Urgency)
	}
}

func TestRugDetectorInsufficientTicks(t *testing.T) {
	d := NewRugDetector(RugConfig{WindowSeconds: 60, MinTicks: 10, ConfidenceThreshold: 0.5})
	a := d.Observe("m", 1.0, 100)
	if a.IsRug {
		t.Fatal("expected no rug signal with insufficient ticks")
	}
}

func TestAntiChopFilterFlatNeverChoppy(t *testing.T) {
	f := NewAntiChopFilter(ChopConfig{ChoppyThreshold: 0.1, Mode: ChopActionPause, MaxConsecutive: 3, RecoveryWait: time.Minute})
	flat := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	sig := f.Evaluate("m", flat)
	if sig.Choppy {
		t.Fatal("expected no chop signal on flat price series")
	}
}

func TestTimeBasedExitHardLimit(t *testing.T) {
	m := NewTimeBasedExitManager(TimeExitConfig{
		Mode:             TimeExitHardLimit,
		MaxHold:          time.Minute,
		ProfitReduction:  0.5,
		LossExtension:    1.5,
		QuickExitLossPct: 0.05,
		QuickExitTime:    10 * time.Second,
	})

	if m.ShouldExit(0.01, 20*time.Second) {
		t.Fatal("should not exit before effective max hold")
	}
	if !m.ShouldExit(0.01, 40*time.Second) {
		t.Fatal("expected exit after profit-scaled max hold (30s)")
	}
}

func TestTrailingStopArmAndTrigger(t *testing.T) {
	ts := NewTrailingStop(TrailingConfig{MinProfitBeforeTrailing: 0.05, TrailingPct: 0.1})

	_, armed := ts.ArmLevel(0.01, 1.1)
	if armed {
		t.Fatal("should not arm below min profit")
	}

	level, armed := ts.ArmLevel(0.06, 1.1)
	if !armed {
		t.Fatal("expected arm above min profit")
	}
	want := 1.1 * 0.9
	if level != want {
		t.Fatalf("arm level = %v, want %v", level, want)
	}

	if !ts.Triggered(0.98, level, true) {
		t.Fatal("expected trigger when price below stop")
	}
	if ts.Triggered(1.0, level, true) {
		t.Fatal("did not expect trigger when price above stop")
	}
}
