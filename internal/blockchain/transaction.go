package blockchain

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// ComputeBudgetProgramID is the compute budget program ID.
const ComputeBudgetProgramID = "ComputeBudget111111111111111111111111111111"

// TransactionBuilder is the spec's TxFactory: it signs transactions
// with an injected SignerCapability and stamps them with a recent
// blockhash it keeps fresh itself, rather than requiring every caller
// to thread a separate cache object through.
type TransactionBuilder struct {
	wallet              SignerCapability
	blockhash           *blockhashFeed
	priorityFeeLamports uint64
	computeUnitLimit    uint32
}

// NewTransactionBuilder creates a TransactionBuilder that signs with
// wallet and keeps its own blockhash fresh by polling rpc every
// refreshInterval, treating a hash older than ttl as stale. The
// initial fetch happens synchronously so a failure surfaces at
// construction rather than on the first signed transaction.
func NewTransactionBuilder(wallet SignerCapability, rpc *RPCClient, refreshInterval, ttl time.Duration, priorityFeeLamports uint64) (*TransactionBuilder, error) {
	feed := newBlockhashFeed(rpc, refreshInterval, ttl)
	if err := feed.start(); err != nil {
		return nil, fmt.Errorf("start blockhash feed: %w", err)
	}
	return &TransactionBuilder{
		wallet:              wallet,
		blockhash:           feed,
		priorityFeeLamports: priorityFeeLamports,
		computeUnitLimit:    600_000, // default headroom for Jupiter swaps
	}, nil
}

// Close stops the builder's background blockhash refresh.
func (b *TransactionBuilder) Close() { b.blockhash.stop() }

// SetComputeUnitLimit overrides the compute unit limit used by
// BuildComputeBudgetInstructions.
func (b *TransactionBuilder) SetComputeUnitLimit(limit uint32) { b.computeUnitLimit = limit }

// BuildComputeBudgetInstructions returns the raw instruction data for
// ComputeBudget::SetComputeUnitLimit and ComputeBudget::SetComputeUnitPrice.
func (b *TransactionBuilder) BuildComputeBudgetInstructions() (setLimit []byte, setPrice []byte) {
	setLimit = make([]byte, 5)
	setLimit[0] = 2 // SetComputeUnitLimit
	binary.LittleEndian.PutUint32(setLimit[1:], b.computeUnitLimit)

	microLamportsPerCU := (b.priorityFeeLamports * 1_000_000) / uint64(b.computeUnitLimit)
	setPrice = make([]byte, 9)
	setPrice[0] = 3 // SetComputeUnitPrice
	binary.LittleEndian.PutUint64(setPrice[1:], microLamportsPerCU)

	return setLimit, setPrice
}

// ComputeBudgetProgramIDBytes returns the compute budget program ID as
// raw pubkey bytes.
func ComputeBudgetProgramIDBytes() []byte {
	b, _ := base58.Decode(ComputeBudgetProgramID)
	return b
}

// SignSerializedTransaction signs a base64-encoded unsigned (or
// placeholder-signed) transaction from a quote/swap service and
// returns the re-signed transaction, still base64-encoded.
func (b *TransactionBuilder) SignSerializedTransaction(serializedTxBase64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(serializedTxBase64)
	if err != nil {
		return "", fmt.Errorf("decode serialized transaction: %w", err)
	}
	if len(txBytes) == 0 {
		return "", fmt.Errorf("empty serialized transaction")
	}

	// Solana transaction wire format: [compact-u16 sig count][signatures...][message].
	sigCount := int(txBytes[0])
	if sigCount == 0 {
		message := txBytes[1:]
		signature := b.wallet.Sign(message)

		signed := make([]byte, 1+64+len(message))
		signed[0] = 1
		copy(signed[1:65], signature)
		copy(signed[65:], message)
		return base64.StdEncoding.EncodeToString(signed), nil
	}

	messageOffset := 1 + sigCount*64
	if messageOffset > len(txBytes) {
		return "", fmt.Errorf("malformed transaction: sig count %d exceeds buffer", sigCount)
	}
	message := txBytes[messageOffset:]
	signature := b.wallet.Sign(message)
	copy(txBytes[1:65], signature)
	return base64.StdEncoding.EncodeToString(txBytes), nil
}

// ReSignSwapTransaction signs a base64-encoded unsigned versioned
// transaction obtained from a quote/swap service and returns the raw
// signed transaction bytes. The Bundler is responsible for
// base58-encoding these bytes before broadcast.
func (b *TransactionBuilder) ReSignSwapTransaction(serializedTxBase64 string) ([]byte, error) {
	signedB64, err := b.SignSerializedTransaction(serializedTxBase64)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(signedB64)
}

// GetRecentBlockhash returns the builder's currently cached blockhash.
func (b *TransactionBuilder) GetRecentBlockhash() (string, error) {
	return b.blockhash.get()
}

// cachedBlockhash is one fetched blockhash plus the metadata needed to
// tell whether it is still usable.
type cachedBlockhash struct {
	hash                 string
	lastValidBlockHeight uint64
	fetchedAt            time.Time
}

// blockhashFeed is a double-buffered, self-refreshing blockhash source
// owned by a single TransactionBuilder. It exists so TxFactory never
// blocks the hot signing path on a network round trip: a background
// loop keeps a second buffer warm so the one in active use is always
// within ttl.
type blockhashFeed struct {
	current atomic.Pointer[cachedBlockhash]
	next    atomic.Pointer[cachedBlockhash]

	rpc      *RPCClient
	ttl      time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	hits   atomic.Int64
	misses atomic.Int64
}

// newBlockhashFeed builds a blockhashFeed; refreshInterval should be
// short (tens to low hundreds of milliseconds) relative to ttl so the
// background loop always wins the race against expiry.
func newBlockhashFeed(rpc *RPCClient, refreshInterval, ttl time.Duration) *blockhashFeed {
	return &blockhashFeed{rpc: rpc, interval: refreshInterval, ttl: ttl, stopCh: make(chan struct{})}
}

func (f *blockhashFeed) start() error {
	if err := f.fetchAndRotate(); err != nil {
		return err
	}
	f.wg.Add(1)
	go f.loop()
	log.Info().Dur("interval", f.interval).Dur("ttl", f.ttl).Msg("blockhash feed started")
	return nil
}

func (f *blockhashFeed) stop() {
	close(f.stopCh)
	f.wg.Wait()
}

// get returns the freshest cached blockhash without blocking unless
// both buffers have gone stale, which should only happen if the
// background loop has fallen badly behind.
func (f *blockhashFeed) get() (string, error) {
	if cached := f.current.Load(); cached != nil && time.Since(cached.fetchedAt) < f.ttl {
		f.hits.Add(1)
		return cached.hash, nil
	}
	if next := f.next.Load(); next != nil && time.Since(next.fetchedAt) < f.ttl {
		f.hits.Add(1)
		return next.hash, nil
	}

	f.misses.Add(1)
	log.Warn().Msg("blockhash feed miss, forcing sync refresh")
	if err := f.fetchAndRotate(); err != nil {
		return "", err
	}
	return f.current.Load().hash, nil
}

func (f *blockhashFeed) hitRate() float64 {
	hits, misses := f.hits.Load(), f.misses.Load()
	total := hits + misses
	if total == 0 {
		return 100.0
	}
	return float64(hits) / float64(total) * 100
}

func (f *blockhashFeed) loop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			if err := f.fetchAndRotate(); err != nil {
				log.Warn().Err(err).Msg("blockhash prefetch failed")
			}
		}
	}
}

func (f *blockhashFeed) fetchAndRotate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := f.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}

	fresh := &cachedBlockhash{
		hash:                 result.Value.Blockhash,
		lastValidBlockHeight: result.Value.LastValidBlockHeight,
		fetchedAt:            time.Now(),
	}

	wasEmpty := f.current.Load() == nil
	f.current.Store(f.next.Load())
	f.next.Store(fresh)
	if wasEmpty {
		f.current.Store(fresh)
	}

	log.Debug().
		Str("hash", result.Value.Blockhash[:16]+"...").
		Uint64("height", result.Value.LastValidBlockHeight).
		Float64("hitRate", f.hitRate()).
		Msg("blockhash prefetched")
	return nil
}
