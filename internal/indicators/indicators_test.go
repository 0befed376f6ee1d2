package indicators

import (
	"math"
	"testing"
)

func TestSMAInsufficientData(t *testing.T) {
	if _, ok := SMA([]float64{1, 2}, 5); ok {
		t.Fatal("expected SMA to report insufficient data")
	}
}

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4}, 2)
	if !ok || v != 3.5 {
		t.Fatalf("SMA = %v, %v; want 3.5, true", v, ok)
	}
}

func TestRSIBoundsMonotonicRising(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1 + float64(i)*0.1
	}
	rsi, ok := RSI(closes, 14)
	if !ok {
		t.Fatal("expected RSI ok")
	}
	if rsi < 0 || rsi > 100 {
		t.Fatalf("RSI out of bounds: %v", rsi)
	}
	if rsi < 90 {
		t.Fatalf("expected RSI near 100 for monotonically rising input, got %v", rsi)
	}
}

func TestRSIBoundsMonotonicFalling(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 10 - float64(i)*0.1
	}
	rsi, ok := RSI(closes, 14)
	if !ok {
		t.Fatal("expected RSI ok")
	}
	if rsi > 10 {
		t.Fatalf("expected RSI near 0 for monotonically falling input, got %v", rsi)
	}
}

func TestRSINeutralHeuristic(t *testing.T) {
	rsi, ok := RSI([]float64{1.0, 1.0, 1.5}, 14)
	if !ok || rsi != 65 {
		t.Fatalf("RSI = %v, %v; want 65, true", rsi, ok)
	}
	rsi, ok = RSI([]float64{1.0, 1.0, 0.5}, 14)
	if !ok || rsi != 35 {
		t.Fatalf("RSI = %v, %v; want 35, true", rsi, ok)
	}
}

func TestRSITooShort(t *testing.T) {
	if _, ok := RSI([]float64{1, 2}, 14); ok {
		t.Fatal("expected RSI insufficient data for < 3 samples")
	}
}

func TestBollingerBandsFlat(t *testing.T) {
	closes := []float64{5, 5, 5, 5, 5}
	b, ok := BollingerBands(closes, 5, 2)
	if !ok {
		t.Fatal("expected ok")
	}
	if b.Mid != 5 || b.Upper != 5 || b.Lower != 5 {
		t.Fatalf("expected flat bands at 5, got %+v", b)
	}
}

func TestDonchian(t *testing.T) {
	values := []float64{1, 5, 3, 2, 4}
	high, ok := DonchianHigh(values, 5)
	if !ok || high != 5 {
		t.Fatalf("DonchianHigh = %v, %v; want 5, true", high, ok)
	}
	low, ok := DonchianLow(values, 5)
	if !ok || low != 1 {
		t.Fatalf("DonchianLow = %v, %v; want 1, true", low, ok)
	}
}

func TestROC(t *testing.T) {
	closes := []float64{1.0, 1.1, 1.21}
	roc, ok := ROC(closes, 2)
	if !ok {
		t.Fatal("expected ok")
	}
	want := (1.21 - 1.0) / 1.0
	if math.Abs(roc-want) > 1e-9 {
		t.Fatalf("ROC = %v, want %v", roc, want)
	}
}

func TestROCZeroPrior(t *testing.T) {
	if _, ok := ROC([]float64{0, 1, 2}, 2); ok {
		t.Fatal("expected ROC to reject zero prior price")
	}
}

func TestChoppinessFlatIsZero(t *testing.T) {
	values := []float64{2, 2, 2, 2, 2}
	if c := Choppiness(values); c != 0 {
		t.Fatalf("expected choppiness 0 for flat series, got %v", c)
	}
}
