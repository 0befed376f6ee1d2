package order

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSubmitAssignsIDWhenEmpty(t *testing.T) {
	s := NewSubmitter(func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: StatusFilled}, nil
	})

	res, err := s.Submit(context.Background(), Request{Mint: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID == "" {
		t.Fatal("expected an assigned ID")
	}
}

func TestSubmitIsIdempotentSequential(t *testing.T) {
	var calls int32
	s := NewSubmitter(func(ctx context.Context, req Request) (Result, error) {
		atomic.AddInt32(&calls, 1)
		return Result{Status: StatusFilled, ExecutedAmount: decimal.NewFromInt(100)}, nil
	})

	first, err := s.Submit(context.Background(), Request{ID: "order-1", Mint: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Submit(context.Background(), Request{ID: "order-1", Mint: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected executor to run once, ran %d times", calls)
	}
	if !first.ExecutedAmount.Equal(second.ExecutedAmount) {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
}

func TestSubmitIsIdempotentConcurrent(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	s := NewSubmitter(func(ctx context.Context, req Request) (Result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Result{Status: StatusFilled}, nil
	})

	const n = 10
	results := make([]Result, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			res, _ := s.Submit(context.Background(), Request{ID: "shared", Mint: "m"})
			results[i] = res
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected executor to run exactly once concurrently, ran %d times", calls)
	}
	for i := 1; i < n; i++ {
		if results[i].Status != results[0].Status {
			t.Fatalf("inconsistent concurrent results: %v vs %v", results[0], results[i])
		}
	}
}

func TestSubmitPropagatesExecutorError(t *testing.T) {
	s := NewSubmitter(func(ctx context.Context, req Request) (Result, error) {
		return Result{}, context.DeadlineExceeded
	})

	res, err := s.Submit(context.Background(), Request{ID: "order-err", Mint: "m"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if res.Status != StatusRejected {
		t.Fatalf("expected default rejected status, got %v", res.Status)
	}
}
