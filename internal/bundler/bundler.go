// Package bundler batches signed transactions behind a single tip
// transaction and broadcasts the resulting bundle to a set of relays.
package bundler

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"

	"solana-strategy-engine/internal/blockchain"
)

// ErrStopped is returned by Enqueue once Stop has been called.
var ErrStopped = errors.New("bundler: stopped")

// Config controls batching cadence and relay fan-out.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	TipLamports   uint64
	TipAccounts   []string
	RelayURLs     []string
	RequestTimeout time.Duration
}

// Bundler owns a bounded FIFO queue of signed transactions, flushing
// them as bundles headed by a tip transaction. External callers only
// ever Enqueue; the queue itself is private.
type Bundler struct {
	cfg     Config
	factory *blockchain.TransactionBuilder
	client  *http.Client

	mu    sync.Mutex
	queue [][]byte

	stopped  atomic.Bool
	flushNow chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Bundler that builds tip transactions via factory and
// broadcasts to cfg.RelayURLs.
func New(cfg Config, factory *blockchain.TransactionBuilder) *Bundler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Bundler{
		cfg:     cfg,
		factory: factory,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		flushNow: make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue appends a signed transaction's raw bytes to the queue,
// triggering an immediate flush if the queue has reached batch_size.
// It returns ErrStopped once Stop has been called.
func (b *Bundler) Enqueue(signedTx []byte) error {
	if b.stopped.Load() {
		return ErrStopped
	}

	b.mu.Lock()
	b.queue = append(b.queue, signedTx)
	shouldFlush := len(b.queue) >= b.cfg.BatchSize
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushNow <- struct{}{}:
		default:
		}
	}
	return nil
}

// Start runs the background flush loop until Stop is called.
func (b *Bundler) Start(ctx context.Context) {
	go b.run(ctx)
}

func (b *Bundler) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flushAll(context.Background())
			return
		case <-b.stop:
			b.flushAll(context.Background())
			return
		case <-ticker.C:
			b.flushAll(ctx)
		case <-b.flushNow:
			b.flushAll(ctx)
		}
	}
}

// Stop forces one final drain of the queue and waits for it to
// complete. Idempotent.
func (b *Bundler) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	close(b.stop)
	<-b.done
}

// flushAll repeatedly drains and submits chunks until the queue is
// empty.
func (b *Bundler) flushAll(ctx context.Context) {
	for {
		chunk, ok := b.drain()
		if !ok {
			return
		}
		b.flushChunk(ctx, chunk)
	}
}

// drain removes up to batch_size items from the queue under the
// mutex. No network I/O happens while the mutex is held.
func (b *Bundler) drain() ([][]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil, false
	}

	n := b.cfg.BatchSize
	if n > len(b.queue) {
		n = len(b.queue)
	}
	chunk := make([][]byte, n)
	copy(chunk, b.queue[:n])
	b.queue = b.queue[n:]
	return chunk, true
}

func (b *Bundler) flushChunk(ctx context.Context, chunk [][]byte) {
	tip, err := b.factory.BuildTip(ctx, b.cfg.TipLamports, b.randomTipAccount())
	if err != nil {
		log.Error().Err(err).Msg("bundler: failed to build tip transaction, dropping chunk")
		return
	}

	bundle := make([]string, 0, len(chunk)+1)
	bundle = append(bundle, base58.Encode(tip))
	for _, tx := range chunk {
		bundle = append(bundle, base58.Encode(tx))
	}

	var wg sync.WaitGroup
	for _, relay := range b.cfg.RelayURLs {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := b.sendBundle(ctx, url, bundle); err != nil {
				log.Warn().Err(err).Str("relay", url).Int("size", len(bundle)).Msg("bundler: relay submission failed")
			}
		}(relay)
	}
	wg.Wait()
}

func (b *Bundler) sendBundle(ctx context.Context, relayURL string, bundle []string) error {
	payload, err := json.Marshal(struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      int           `json:"id"`
		Method  string        `json:"method"`
		Params  [][]string    `json:"params"`
	}{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{bundle},
	})
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, relayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}

func (b *Bundler) randomTipAccount() string {
	if len(b.cfg.TipAccounts) == 0 {
		return ""
	}
	if len(b.cfg.TipAccounts) == 1 {
		return b.cfg.TipAccounts[0]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(b.cfg.TipAccounts))))
	if err != nil {
		return b.cfg.TipAccounts[0]
	}
	return b.cfg.TipAccounts[n.Int64()]
}

// Len reports the current queue depth; used by tests and metrics.
func (b *Bundler) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
