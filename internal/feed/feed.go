// Package feed defines the abstract price and discovery streams the
// trading engine consumes, plus a concrete adapter binding PriceFeed to
// Raydium AMM pool accounts over a websocket RPC connection.
package feed

import (
	"encoding/json"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"solana-strategy-engine/internal/wsrpc"
)

// PriceEvent is one tick of a tracked mint's price.
type PriceEvent struct {
	Mint      string
	PriceUSD  float64
	Volume    float64
	Timestamp time.Time
}

// DiscoveryEvent announces a newly observed mint.
type DiscoveryEvent struct {
	Mint         string
	Source       string
	InitialBuy   float64
	MarketCapSOL float64
}

// PriceHandler receives price ticks.
type PriceHandler func(PriceEvent)

// DiscoveryHandler receives discovery events.
type DiscoveryHandler func(DiscoveryEvent)

// PriceFeed is the abstract price stream the engine depends on.
// Concrete implementations bind it to a real data source.
type PriceFeed interface {
	TrackToken(mint string) error
	UntrackToken(mint string) error
	OnPriceUpdate(handler PriceHandler)
}

// DiscoveryFeed is the abstract discovery stream the engine depends on.
type DiscoveryFeed interface {
	OnDiscovery(handler DiscoveryHandler)
}

// RaydiumAMMProgramID is the Raydium liquidity-pool program.
const RaydiumAMMProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// PoolReserves is the decoded state of an AMM pool account relevant to
// price computation.
type PoolReserves struct {
	BaseReserve   uint64
	QuoteReserve  uint64
	BaseDecimals  int
	QuoteDecimals int
}

// CalculatePriceFromReserves derives a quote-per-base price from pool
// reserves, adjusted for each side's decimals.
func CalculatePriceFromReserves(r PoolReserves) float64 {
	if r.BaseReserve == 0 {
		return 0
	}
	base := float64(r.BaseReserve) / math.Pow10(r.BaseDecimals)
	quote := float64(r.QuoteReserve) / math.Pow10(r.QuoteDecimals)
	return quote / base
}

// SolUSDRate is a pluggable SOL/USD conversion, refreshed out-of-band
// (e.g. from the Jupiter client's own quote cache).
type SolUSDRate func() float64

// WebsocketFeed adapts a wsrpc.Client into a PriceFeed by subscribing
// to each tracked mint's pool account and recomputing price on every
// account change notification.
type WebsocketFeed struct {
	client   *wsrpc.Client
	solUSD   SolUSDRate
	poolOf   func(mint string) (string, error)

	mu       sync.RWMutex
	subs     map[string]uint64
	lastSeen map[string]time.Time

	handlersMu sync.RWMutex
	handlers   []PriceHandler
}

// NewWebsocketFeed creates a feed bound to client. poolOf resolves a
// mint to its AMM pool account address (pool discovery is out of
// scope here); solUSD supplies the current SOL/USD rate for
// denominating prices.
func NewWebsocketFeed(client *wsrpc.Client, poolOf func(mint string) (string, error), solUSD SolUSDRate) *WebsocketFeed {
	return &WebsocketFeed{
		client:   client,
		solUSD:   solUSD,
		poolOf:   poolOf,
		subs:     make(map[string]uint64),
		lastSeen: make(map[string]time.Time),
	}
}

// OnPriceUpdate registers handler to receive every decoded price tick.
func (f *WebsocketFeed) OnPriceUpdate(handler PriceHandler) {
	f.handlersMu.Lock()
	f.handlers = append(f.handlers, handler)
	f.handlersMu.Unlock()
}

// TrackToken subscribes to mint's pool account.
func (f *WebsocketFeed) TrackToken(mint string) error {
	f.mu.RLock()
	_, already := f.subs[mint]
	f.mu.RUnlock()
	if already {
		return nil
	}

	poolAddr, err := f.poolOf(mint)
	if err != nil {
		return err
	}

	subID, err := f.client.AccountSubscribe(poolAddr, func(data json.RawMessage) {
		f.handlePoolUpdate(mint, data)
	})
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.subs[mint] = subID
	f.mu.Unlock()
	return nil
}

// UntrackToken cancels mint's pool subscription.
func (f *WebsocketFeed) UntrackToken(mint string) error {
	f.mu.Lock()
	subID, ok := f.subs[mint]
	if ok {
		delete(f.subs, mint)
	}
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return f.client.Unsubscribe("accountUnsubscribe", subID)
}

func (f *WebsocketFeed) handlePoolUpdate(mint string, data json.RawMessage) {
	var update struct {
		Value struct {
			Data struct {
				Parsed struct {
					Info struct {
						BaseReserve   string `json:"baseReserve"`
						QuoteReserve  string `json:"quoteReserve"`
						BaseDecimals  int    `json:"baseDecimals"`
						QuoteDecimals int    `json:"quoteDecimals"`
						Volume        string `json:"volume24h"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &update); err != nil {
		log.Warn().Err(err).Str("mint", mint).Msg("feed: failed to parse pool update")
		return
	}

	base, _ := strconv.ParseUint(update.Value.Data.Parsed.Info.BaseReserve, 10, 64)
	quote, _ := strconv.ParseUint(update.Value.Data.Parsed.Info.QuoteReserve, 10, 64)
	volume, _ := strconv.ParseFloat(update.Value.Data.Parsed.Info.Volume, 64)

	priceSOL := CalculatePriceFromReserves(PoolReserves{
		BaseReserve:   base,
		QuoteReserve:  quote,
		BaseDecimals:  update.Value.Data.Parsed.Info.BaseDecimals,
		QuoteDecimals: update.Value.Data.Parsed.Info.QuoteDecimals,
	})

	rate := 1.0
	if f.solUSD != nil {
		rate = f.solUSD()
	}

	now := time.Now()
	f.mu.Lock()
	f.lastSeen[mint] = now
	f.mu.Unlock()

	f.notify(PriceEvent{Mint: mint, PriceUSD: priceSOL * rate, Volume: volume, Timestamp: now})
}

func (f *WebsocketFeed) notify(evt PriceEvent) {
	f.handlersMu.RLock()
	handlers := f.handlers
	f.handlersMu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

// ManualDiscoveryFeed is the concrete DiscoveryFeed binding for sources
// that are out of this repository's scope to parse directly (PumpFun's
// own API, Birdeye-style boosted/profile feeds, a pool-creation
// watcher). Those ingestion adapters live behind whatever external
// client the operator wires in; this type is the seam they call into:
// Push delivers one discovery event to every registered handler, same
// fan-out shape as WebsocketFeed's price handlers.
type ManualDiscoveryFeed struct {
	handlersMu sync.RWMutex
	handlers   []DiscoveryHandler
}

// NewManualDiscoveryFeed creates an empty ManualDiscoveryFeed.
func NewManualDiscoveryFeed() *ManualDiscoveryFeed {
	return &ManualDiscoveryFeed{}
}

// OnDiscovery registers handler to receive every pushed event.
func (f *ManualDiscoveryFeed) OnDiscovery(handler DiscoveryHandler) {
	f.handlersMu.Lock()
	f.handlers = append(f.handlers, handler)
	f.handlersMu.Unlock()
}

// Push delivers evt to every registered handler. Safe to call from any
// ingestion goroutine.
func (f *ManualDiscoveryFeed) Push(evt DiscoveryEvent) {
	f.handlersMu.RLock()
	handlers := f.handlers
	f.handlersMu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

// ManualPriceFeed is a PriceFeed driven by explicit Push calls rather
// than a live subscription. It backs scripted simulations and tests
// that need to script an exact tick sequence against the engine.
type ManualPriceFeed struct {
	mu      sync.RWMutex
	tracked map[string]bool

	handlersMu sync.RWMutex
	handlers   []PriceHandler
}

// NewManualPriceFeed creates an empty ManualPriceFeed.
func NewManualPriceFeed() *ManualPriceFeed {
	return &ManualPriceFeed{tracked: make(map[string]bool)}
}

// TrackToken marks mint as tracked; Push on an untracked mint is still
// delivered, matching the looser contract a real feed might offer.
func (f *ManualPriceFeed) TrackToken(mint string) error {
	f.mu.Lock()
	f.tracked[mint] = true
	f.mu.Unlock()
	return nil
}

// UntrackToken removes mint from the tracked set.
func (f *ManualPriceFeed) UntrackToken(mint string) error {
	f.mu.Lock()
	delete(f.tracked, mint)
	f.mu.Unlock()
	return nil
}

// OnPriceUpdate registers handler to receive every pushed tick.
func (f *ManualPriceFeed) OnPriceUpdate(handler PriceHandler) {
	f.handlersMu.Lock()
	f.handlers = append(f.handlers, handler)
	f.handlersMu.Unlock()
}

// Push delivers evt to every registered handler.
func (f *ManualPriceFeed) Push(evt PriceEvent) {
	f.handlersMu.RLock()
	handlers := f.handlers
	f.handlersMu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}
