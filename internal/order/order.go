// Package order defines the OrderRequest/OrderResult contract and
// guarantees idempotent submission: calling Submit twice with the same
// request id returns the same result, whether or not the first call
// has already finished.
package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Priority governs urgency of execution; Emergency orders are used by
// the risk engine's forced sells.
type Priority string

const (
	PriorityNormal    Priority = "NORMAL"
	PriorityHigh      Priority = "HIGH"
	PriorityEmergency Priority = "EMERGENCY"
)

// Status is the terminal or in-flight disposition of an order.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSubmitted       Status = "SUBMITTED"
	StatusFilled          Status = "FILLED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusRejected        Status = "REJECTED"
	StatusTimeout         Status = "TIMEOUT"
)

// Request is a client-issued order. ID is the idempotency key;
// if empty, Submit assigns one.
type Request struct {
	ID             string
	Mint           string
	Side           Side
	Amount         decimal.Decimal
	MaxSlippageBps int
	TimeoutMs      int
	Priority       Priority
}

// Result is the outcome of executing a Request.
type Result struct {
	ID             string
	Status         Status
	ExecutedAmount decimal.Decimal
	ExecutedPrice  decimal.Decimal
	Fees           decimal.Decimal
	Slippage       decimal.Decimal
	LatencyMs      int64
}

// Executor performs the actual work of an order (building a
// transaction via TxFactory and enqueueing it with the Bundler). It is
// supplied by the orchestrator so this package stays free of
// blockchain/transport concerns.
type Executor func(ctx context.Context, req Request) (Result, error)

// Submitter wraps an Executor with idempotent submission: concurrent
// and sequential calls sharing the same Request.ID return the same
// Result, and the Executor runs at most once per ID.
type Submitter struct {
	exec  Executor
	group singleflight.Group

	mu      sync.Mutex
	results map[string]Result
}

// NewSubmitter creates a Submitter around exec.
func NewSubmitter(exec Executor) *Submitter {
	return &Submitter{
		exec:    exec,
		results: make(map[string]Result),
	}
}

// Submit executes req exactly once per ID, no matter how many times or
// how concurrently it is called with that ID.
func (s *Submitter) Submit(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if cached, ok := s.cached(req.ID); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(req.ID, func() (interface{}, error) {
		if cached, ok := s.cached(req.ID); ok {
			return cached, nil
		}

		start := time.Now()
		res, execErr := s.exec(ctx, req)
		res.ID = req.ID
		res.LatencyMs = time.Since(start).Milliseconds()
		if execErr != nil && res.Status == "" {
			res.Status = StatusRejected
		}

		s.mu.Lock()
		s.results[req.ID] = res
		s.mu.Unlock()

		return res, execErr
	})

	result, _ := v.(Result)
	return result, err
}

func (s *Submitter) cached(id string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	return r, ok
}
