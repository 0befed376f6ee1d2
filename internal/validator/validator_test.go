package validator

import (
	"testing"
	"time"
)

func TestBlacklistRejected(t *testing.T) {
	v := New(Config{Blacklist: []string{"bad"}}, nil)
	r := v.Validate("bad", time.Now())
	if r.Pass {
		t.Fatal("expected blacklisted mint to fail")
	}
}

func TestLiquidityProbeGate(t *testing.T) {
	v := New(Config{MinLiquidityUSD: 1000}, func(mint string) (float64, bool) {
		return 500, true
	})
	r := v.Validate("m", time.Now())
	if r.Pass {
		t.Fatal("expected low liquidity to fail")
	}

	v2 := New(Config{MinLiquidityUSD: 1000}, func(mint string) (float64, bool) {
		return 5000, true
	})
	r2 := v2.Validate("m", time.Now())
	if !r2.Pass {
		t.Fatalf("expected sufficient liquidity to pass, got reason %q", r2.Reason)
	}
}

func TestStaleDiscoveryRejected(t *testing.T) {
	v := New(Config{MaxAgeForEntry: time.Second}, nil)
	r := v.Validate("m", time.Now().Add(-time.Minute))
	if r.Pass {
		t.Fatal("expected stale discovery to fail")
	}
}
