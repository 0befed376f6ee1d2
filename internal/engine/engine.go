// Package engine hosts the TradingEngine: the single owner of every
// mint's status and Position. Every other package in this repository
// is a collaborator the engine calls into; none of them mutate engine
// state directly. State transitions are serialized through one
// command channel so no I/O ever runs while a mint's lock is held.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"solana-strategy-engine/internal/feed"
	"solana-strategy-engine/internal/order"
	"solana-strategy-engine/internal/position"
	"solana-strategy-engine/internal/risk"
	"solana-strategy-engine/internal/storage"
	"solana-strategy-engine/internal/strategy"
	"solana-strategy-engine/internal/validator"
)

const priceHistoryCap = 300

// Config mirrors config.StrategyConfig, the operator-facing knobs for
// one TradingEngine instance.
type Config struct {
	MaxPositions       int
	MaxConcurrentBuys  int
	BlockBuy           bool
	SolAmountPerTrade  float64
	AutoSellAll        bool
	SellAllInterval    time.Duration
	SplSellBatch       int
	SellWait           time.Duration
	TickInterval       time.Duration
	VolatilityLookback int
}

// Deps bundles every collaborator the engine drives. BuyExecutor and
// SellExecutor perform the actual quote/sign/bundle work; they are
// supplied by the process wiring so this package stays free of
// blockchain and transport concerns.
type Deps struct {
	PriceFeed     feed.PriceFeed
	DiscoveryFeed feed.DiscoveryFeed
	Validator     *validator.TokenValidator
	Strategies    *strategy.Engine
	Risk          *risk.Engine
	Positions     *position.Manager
	Store         *storage.DB
	BuyExecutor   order.Executor
	SellExecutor  order.Executor
	SOLUSD        func() float64
}

type tokenEntry struct {
	mu      sync.Mutex
	info    strategy.TokenInfo
	status  strategy.TokenState
	price   float64
	volume  float64
	history []float64
	orderID string
}

func (t *tokenEntry) pushPrice(p, volume float64) {
	t.mu.Lock()
	t.price = p
	t.volume = volume
	t.history = append(t.history, p)
	if len(t.history) > priceHistoryCap {
		t.history = t.history[len(t.history)-priceHistoryCap:]
	}
	t.mu.Unlock()
}

func (t *tokenEntry) snapshot() (strategy.TokenState, float64, []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := make([]float64, len(t.history))
	copy(hist, t.history)
	return t.status, t.price, hist
}

// TradingEngine owns every mint's status and Position exclusively; no
// other package mutates either. Buy and Sell requests funnel through a
// single command goroutine so concurrent strategy/risk callers never
// race on a status transition.
type TradingEngine struct {
	cfg  Config
	deps Deps

	buyOrders  *order.Submitter
	sellOrders *order.Submitter

	mu     sync.RWMutex
	tokens map[string]*tokenEntry

	concurrentBuys atomic.Int32
	blockBuy       atomic.Bool

	cmds    chan func(ctx context.Context)
	stopped atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	done    chan struct{}
}

// New builds a TradingEngine from cfg and deps. Start must be called
// before any discovery or price events are delivered.
func New(cfg Config, deps Deps) *TradingEngine {
	e := &TradingEngine{
		cfg:    cfg,
		deps:   deps,
		tokens: make(map[string]*tokenEntry),
		cmds:   make(chan func(ctx context.Context), 256),
		done:   make(chan struct{}),
	}
	e.blockBuy.Store(cfg.BlockBuy)
	e.buyOrders = order.NewSubmitter(deps.BuyExecutor)
	e.sellOrders = order.NewSubmitter(deps.SellExecutor)
	return e
}

// Start wires the engine to its feeds and launches the command and
// tick loops. It reloads any persisted positions first, revalidating
// each against a fresh price read before resuming monitoring.
func (e *TradingEngine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	group, groupCtx := errgroup.WithContext(runCtx)
	e.group = group

	if err := e.reload(groupCtx); err != nil {
		cancel()
		return err
	}

	if e.deps.DiscoveryFeed != nil {
		e.deps.DiscoveryFeed.OnDiscovery(func(evt feed.DiscoveryEvent) {
			e.enqueue(func(ctx context.Context) { e.handleDiscovery(ctx, evt) })
		})
	}
	if e.deps.PriceFeed != nil {
		e.deps.PriceFeed.OnPriceUpdate(func(evt feed.PriceEvent) {
			e.enqueue(func(ctx context.Context) { e.handlePriceUpdate(ctx, evt) })
		})
	}

	group.Go(func() error { return e.commandLoop(groupCtx) })

	if e.cfg.TickInterval > 0 {
		group.Go(func() error { return e.tickLoop(groupCtx) })
	}

	if e.cfg.AutoSellAll && e.cfg.SellAllInterval > 0 {
		group.Go(func() error { return e.sellAllLoop(groupCtx) })
	}

	go func() {
		_ = group.Wait()
		close(e.done)
	}()

	return nil
}

// Stop cancels every running loop and blocks until they exit. Stop is
// idempotent; calling it more than once is a no-op after the first
// call. Buy, Sell and discovery/price event handling issued after Stop
// return false or are silently dropped rather than racing shutdown.
func (e *TradingEngine) Stop() error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
	return nil
}

func (e *TradingEngine) enqueue(fn func(ctx context.Context)) {
	if e.stopped.Load() {
		return
	}
	select {
	case e.cmds <- fn:
	default:
		log.Warn().Msg("engine: command queue full, dropping event")
	}
}

func (e *TradingEngine) commandLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-e.cmds:
			fn(ctx)
		}
	}
}

func (e *TradingEngine) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.enqueue(func(ctx context.Context) { e.deps.Strategies.OnTick(e) })
		}
	}
}

func (e *TradingEngine) sellAllLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SellAllInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.SellAllOnce(ctx)
		}
	}
}

func (e *TradingEngine) reload(ctx context.Context) error {
	if e.deps.Store == nil {
		return nil
	}
	rows, err := e.deps.Store.GetAllPositions()
	if err != nil {
		return err
	}
	for _, row := range rows {
		te := &tokenEntry{
			info: strategy.TokenInfo{
				Mint:         row.Mint,
				Source:       row.Source,
				DiscoveredAt: time.Unix(row.DiscoveredAt, 0),
			},
			status: strategy.TokenState(row.Status),
		}
		e.mu.Lock()
		e.tokens[row.Mint] = te
		e.mu.Unlock()

		if row.Status == string(strategy.StateSwapped) || row.Status == string(strategy.StateSelling) {
			e.deps.Positions.Add(row.Mint, row.EntryPrice, row.AmountUSD)
			if e.deps.PriceFeed != nil {
				if err := e.deps.PriceFeed.TrackToken(row.Mint); err != nil {
					log.Warn().Err(err).Str("mint", row.Mint).Msg("engine: failed to re-track reloaded position")
				}
			}
			log.Info().Str("mint", row.Mint).Str("status", row.Status).Msg("engine: reloaded position, awaiting fresh price before revalidating")
		}
	}
	return nil
}

func (e *TradingEngine) handleDiscovery(ctx context.Context, evt feed.DiscoveryEvent) {
	e.mu.RLock()
	_, exists := e.tokens[evt.Mint]
	e.mu.RUnlock()
	if exists {
		return
	}

	if e.deps.Validator != nil {
		result := e.deps.Validator.Validate(evt.Mint, time.Now())
		if !result.Pass {
			log.Debug().Str("mint", evt.Mint).Str("reason", result.Reason).Msg("engine: discovery rejected")
			return
		}
	}

	info := strategy.TokenInfo{
		Mint:         evt.Mint,
		Source:       evt.Source,
		DiscoveredAt: time.Now(),
		InitialBuy:   evt.InitialBuy,
		MarketCapSOL: evt.MarketCapSOL,
	}
	te := &tokenEntry{info: info, status: strategy.StateNew}

	e.mu.Lock()
	e.tokens[evt.Mint] = te
	e.mu.Unlock()

	e.persist(te)

	if e.deps.PriceFeed != nil {
		if err := e.deps.PriceFeed.TrackToken(evt.Mint); err != nil {
			log.Warn().Err(err).Str("mint", evt.Mint).Msg("engine: failed to track discovered mint")
		}
	}

	if e.deps.Strategies != nil {
		e.deps.Strategies.OnDiscovered(info, e)
	}
}

func (e *TradingEngine) handlePriceUpdate(ctx context.Context, evt feed.PriceEvent) {
	e.mu.RLock()
	te, ok := e.tokens[evt.Mint]
	e.mu.RUnlock()
	if !ok {
		return
	}
	te.pushPrice(evt.PriceUSD, evt.Volume)

	status, _, _ := te.snapshot()
	if status != strategy.StateSwapped {
		return
	}

	snap, ok := e.deps.Positions.Update(evt.Mint, evt.PriceUSD)
	if !ok {
		return
	}

	if e.deps.Risk == nil {
		return
	}

	if level, shouldArm := e.deps.Risk.Trailing.ArmLevel(snap.UnrealizedPnLPct, snap.Peak); shouldArm && !snap.TrailingArmed {
		if pos, ok := e.deps.Positions.Get(evt.Mint); ok {
			pos.ArmTrailing(level)
		}
	} else if snap.TrailingArmed {
		if pos, ok := e.deps.Positions.Get(evt.Mint); ok {
			pos.RaiseTrailing(e.deps.Risk.Trailing.RaiseLevel(snap.Peak))
		}
	}

	rec := e.deps.Risk.Evaluate(evt.Mint, snap, evt.Volume)
	if rec.Sell {
		log.Info().Str("mint", evt.Mint).Str("reason", rec.Reason).Str("priority", string(rec.Priority)).Msg("engine: risk-forced sell")
		e.Sell(evt.Mint)
	}
}

func (e *TradingEngine) persist(te *tokenEntry) {
	if e.deps.Store == nil {
		return
	}
	status, price, _ := te.snapshot()
	amountUSD, quantity := 0.0, 0.0
	if snap, ok := e.deps.Positions.Get(te.info.Mint); ok {
		s := snap.Snapshot()
		amountUSD, quantity = s.AmountUSD, s.Quantity
	}
	row := &storage.PersistedPosition{
		Mint:         te.info.Mint,
		Status:       string(status),
		Source:       te.info.Source,
		DiscoveredAt: te.info.DiscoveredAt.Unix(),
		EntryPrice:   price,
		EntryTime:    time.Now().Unix(),
		AmountUSD:    amountUSD,
		Quantity:     quantity,
	}
	if err := e.deps.Store.UpsertPosition(row); err != nil {
		log.Warn().Err(err).Str("mint", te.info.Mint).Msg("engine: failed to persist position")
	}
}

// ---- strategy.Runtime implementation ----

// IsNew reports whether mint has never left the New state.
func (e *TradingEngine) IsNew(mint string) bool {
	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	status, _, _ := te.snapshot()
	return status == strategy.StateNew
}

// Status returns mint's current state machine value.
func (e *TradingEngine) Status(mint string) (strategy.TokenState, bool) {
	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return "", false
	}
	status, _, _ := te.snapshot()
	return status, true
}

// AllTokens returns every mint the engine currently tracks.
func (e *TradingEngine) AllTokens() []strategy.TokenInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]strategy.TokenInfo, 0, len(e.tokens))
	for _, te := range e.tokens {
		out = append(out, te.info)
	}
	return out
}

// GetTokenUSDPrice returns the last observed price for mint.
func (e *TradingEngine) GetTokenUSDPrice(mint string) (float64, bool) {
	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return 0, false
	}
	_, price, _ := te.snapshot()
	return price, price > 0
}

// GetPriceHistory returns mint's bounded price history, oldest first.
func (e *TradingEngine) GetPriceHistory(mint string) []float64 {
	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	_, _, hist := te.snapshot()
	return hist
}

// PositionSnapshot returns mint's current Position snapshot, if any,
// without mutating its tracked current price.
func (e *TradingEngine) PositionSnapshot(mint string) (position.Snapshot, bool) {
	pos, ok := e.deps.Positions.Get(mint)
	if !ok {
		return position.Snapshot{}, false
	}
	return pos.Snapshot(), true
}

// Now returns the current wall-clock time; a thin indirection so
// strategies stay deterministic under test via a fake Runtime.
func (e *TradingEngine) Now() time.Time { return time.Now() }

// Buy attempts to move mint from New to TradePending and submit a buy
// order. It returns false if mint is unknown, not in state New,
// max_positions or max_concurrent_buys is reached, or buying is
// globally blocked.
func (e *TradingEngine) Buy(mint string) bool {
	if e.stopped.Load() {
		return false
	}
	if e.blockBuy.Load() {
		return false
	}

	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return false
	}

	if e.cfg.MaxPositions > 0 && e.countInState(strategy.StateSwapped)+e.countInState(strategy.StateTradePending) >= e.cfg.MaxPositions {
		return false
	}
	if e.cfg.MaxConcurrentBuys > 0 && int(e.concurrentBuys.Load()) >= e.cfg.MaxConcurrentBuys {
		return false
	}

	te.mu.Lock()
	if te.status != strategy.StateNew {
		te.mu.Unlock()
		return false
	}

	te.status = strategy.StateTradePending
	te.orderID = uuid.NewString()
	orderID := te.orderID
	te.mu.Unlock()

	e.persist(te)
	e.concurrentBuys.Add(1)

	go e.executeBuy(mint, orderID)
	return true
}

func (e *TradingEngine) executeBuy(mint, orderID string) {
	defer e.concurrentBuys.Add(-1)

	solUSD := 1.0
	if e.deps.SOLUSD != nil {
		solUSD = e.deps.SOLUSD()
	}
	amountUSD := e.cfg.SolAmountPerTrade * solUSD

	req := order.Request{
		ID:       orderID,
		Mint:     mint,
		Side:     order.SideBuy,
		Amount:   decimal.NewFromFloat(e.cfg.SolAmountPerTrade),
		Priority: order.PriorityNormal,
	}

	ctx := context.Background()
	result, err := e.buyOrders.Submit(ctx, req)

	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return
	}

	te.mu.Lock()
	if err != nil || result.Status != order.StatusFilled {
		te.status = strategy.StateSellFailed
		te.mu.Unlock()
		e.persist(te)
		log.Error().Err(err).Str("mint", mint).Str("status", string(result.Status)).Msg("engine: buy failed")
		return
	}
	te.status = strategy.StateSwapped
	te.mu.Unlock()

	entryPrice := result.ExecutedPrice
	if entryPrice.IsZero() {
		_, price, _ := te.snapshot()
		entryPrice = decimal.NewFromFloat(price)
	}
	e.deps.Positions.Add(mint, entryPrice.InexactFloat64(), amountUSD)
	e.persist(te)
	log.Info().Str("mint", mint).Str("order_id", orderID).Msg("engine: buy filled")
}

// Sell attempts to move mint from Swapped to Selling and submit a sell
// order. It returns false if mint is unknown or not currently Swapped.
func (e *TradingEngine) Sell(mint string) bool {
	if e.stopped.Load() {
		return false
	}

	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return false
	}

	te.mu.Lock()
	if te.status != strategy.StateSwapped {
		te.mu.Unlock()
		return false
	}
	te.status = strategy.StateSelling
	te.orderID = uuid.NewString()
	orderID := te.orderID
	te.mu.Unlock()

	e.persist(te)
	go e.executeSell(mint, orderID)
	return true
}

func (e *TradingEngine) executeSell(mint, orderID string) {
	snap, hasPos := e.deps.Positions.Get(mint)
	var quantity decimal.Decimal
	var entryPrice, amountUSD float64
	if hasPos {
		s := snap.Snapshot()
		quantity = decimal.NewFromFloat(s.Quantity)
		entryPrice = s.EntryPrice
		amountUSD = s.AmountUSD
	}

	req := order.Request{
		ID:       orderID,
		Mint:     mint,
		Side:     order.SideSell,
		Amount:   quantity,
		Priority: order.PriorityHigh,
	}

	ctx := context.Background()
	result, err := e.sellOrders.Submit(ctx, req)

	e.mu.RLock()
	te, ok := e.tokens[mint]
	e.mu.RUnlock()
	if !ok {
		return
	}

	te.mu.Lock()
	if err != nil || result.Status != order.StatusFilled {
		te.status = strategy.StateSwapped
		te.mu.Unlock()
		e.persist(te)
		log.Error().Err(err).Str("mint", mint).Str("status", string(result.Status)).Msg("engine: sell failed, retryable")
		return
	}
	te.status = strategy.StateSold
	te.mu.Unlock()

	exitPrice := result.ExecutedPrice.InexactFloat64()
	if posSnap, ok := e.deps.Positions.Remove(mint); ok && e.deps.Store != nil {
		pnlUSD := (exitPrice - entryPrice) * posSnap.Quantity
		pnlPct := 0.0
		if entryPrice > 0 {
			pnlPct = (exitPrice - entryPrice) / entryPrice * 100
		}
		trade := &storage.Trade{
			Mint:       mint,
			AmountUSD:  amountUSD,
			EntryPrice: entryPrice,
			ExitPrice:  exitPrice,
			PnLUSD:     pnlUSD,
			PnLPct:     pnlPct,
			DurationMs: posSnap.HoldTime.Milliseconds(),
			Timestamp:  storage.Now(),
		}
		if err := e.deps.Store.InsertTrade(trade); err != nil {
			log.Warn().Err(err).Str("mint", mint).Msg("engine: failed to log trade")
		}
		if err := e.deps.Store.DeletePosition(mint); err != nil {
			log.Warn().Err(err).Str("mint", mint).Msg("engine: failed to delete persisted position")
		}
	}
	if e.deps.PriceFeed != nil {
		_ = e.deps.PriceFeed.UntrackToken(mint)
	}
	log.Info().Str("mint", mint).Str("order_id", orderID).Msg("engine: sell filled")
}

// SellAllOnce issues one Sell per currently Swapped mint, batched by
// SplSellBatch and spaced by SellWait so a single flush doesn't
// saturate the bundle relay or blow through priority-fee budgets.
func (e *TradingEngine) SellAllOnce(ctx context.Context) {
	mints := e.mintsInState(strategy.StateSwapped)
	if len(mints) == 0 {
		return
	}

	batch := e.cfg.SplSellBatch
	if batch <= 0 {
		batch = len(mints)
	}

	for i := 0; i < len(mints); i += batch {
		end := i + batch
		if end > len(mints) {
			end = len(mints)
		}
		for _, mint := range mints[i:end] {
			e.Sell(mint)
		}
		if end < len(mints) && e.cfg.SellWait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.SellWait):
			}
		}
	}
}

// EmergencyStop blocks new buys, issues one sell for every currently
// Swapped mint, and then halts the engine. It does not wait for those
// sells to fill before Stop proceeds; finality is on-chain and results
// surface asynchronously through the normal executeSell path.
func (e *TradingEngine) EmergencyStop(ctx context.Context) error {
	e.blockBuy.Store(true)
	for _, mint := range e.mintsInState(strategy.StateSwapped) {
		e.Sell(mint)
	}
	return e.Stop()
}

// SetBlockBuy toggles the global buy gate, used by an operator
// (through config hot-reload or the observability surface) to pause
// new entries without tearing down the engine.
func (e *TradingEngine) SetBlockBuy(block bool) {
	e.blockBuy.Store(block)
}

func (e *TradingEngine) countInState(state strategy.TokenState) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, te := range e.tokens {
		status, _, _ := te.snapshot()
		if status == state {
			n++
		}
	}
	return n
}

func (e *TradingEngine) mintsInState(state strategy.TokenState) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0)
	for mint, te := range e.tokens {
		status, _, _ := te.snapshot()
		if status == state {
			out = append(out, mint)
		}
	}
	return out
}
