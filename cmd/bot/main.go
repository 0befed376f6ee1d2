// Command bot wires every collaborator package into one running
// TradingEngine: config, storage, signer, RPC/websocket, the Jupiter
// quote client, the transaction factory, the bundler, the strategy and
// risk engines, and the observability surface. This mirrors the
// teacher's initComponents() shape, generalized to this repository's
// strategy/risk/bundler stack instead of the teacher's single
// always-on executor.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"solana-strategy-engine/internal/blockchain"
	"solana-strategy-engine/internal/bundler"
	"solana-strategy-engine/internal/config"
	"solana-strategy-engine/internal/engine"
	"solana-strategy-engine/internal/feed"
	"solana-strategy-engine/internal/health"
	"solana-strategy-engine/internal/jupiter"
	"solana-strategy-engine/internal/observability"
	"solana-strategy-engine/internal/order"
	"solana-strategy-engine/internal/position"
	"solana-strategy-engine/internal/risk"
	"solana-strategy-engine/internal/storage"
	"solana-strategy-engine/internal/strategy"
	"solana-strategy-engine/internal/trading"
	"solana-strategy-engine/internal/validator"
	"solana-strategy-engine/internal/wsrpc"
)

func main() {
	setupLogger()
	log.Info().Msg("solana-strategy-engine starting")

	cfg, err := config.NewManager(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	// Give the initial fsnotify-backed watch a moment to settle before
	// reads start, same as the teacher's manual main()s.
	time.Sleep(200 * time.Millisecond)

	deps, cleanup, err := buildEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build engine")
	}
	defer cleanup()

	eng := engine.New(engineConfig(cfg), deps)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("engine failed to start")
	}
	log.Info().Msg("engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, entering emergency stop")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := eng.EmergencyStop(stopCtx); err != nil {
		log.Error().Err(err).Msg("emergency stop returned an error")
	}
	log.Info().Msg("goodbye")
}

func configPath() string {
	if p := os.Getenv("ENGINE_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func setupLogger() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// builtEngine bundles every long-lived resource buildEngine creates so
// main can tear them down in reverse dependency order.
type builtEngine struct {
	wallet    *blockchain.Wallet
	rpc       *blockchain.RPCClient
	txFactory *blockchain.TransactionBuilder
	wsClient  *wsrpc.Client
	bundle    *bundler.Bundler
	store     *storage.DB
	obsServer *observability.Server
	checker   *health.Checker
}

func (b *builtEngine) close() {
	if b.bundle != nil {
		b.bundle.Stop()
	}
	if b.obsServer != nil {
		_ = b.obsServer.Shutdown()
	}
	if b.txFactory != nil {
		b.txFactory.Close()
	}
	if b.wsClient != nil {
		_ = b.wsClient.Close()
	}
	if b.store != nil {
		_ = b.store.Close()
	}
}

// buildEngine wires config into every collaborator and returns the
// Deps the orchestrator needs, plus a cleanup func for graceful
// shutdown of resources the engine itself doesn't own (the bundler's
// HTTP client, the DB handle, the observability server).
func buildEngine(cfg *config.Manager) (engine.Deps, func(), error) {
	c := cfg.Get()
	built := &builtEngine{}

	wallet, err := loadWallet(cfg)
	if err != nil {
		return engine.Deps{}, built.close, err
	}
	built.wallet = wallet

	rpc := blockchain.NewRPCClient(cfg.GetShyftRPCURL(), cfg.GetFallbackRPCURL(), cfg.GetShyftAPIKey())
	built.rpc = rpc

	priorityFeeLamports := uint64(c.Fees.StaticPriorityFeeSol * 1e9)
	txFactory, err := blockchain.NewTransactionBuilder(
		wallet,
		rpc,
		cfg.GetBlockhashRefresh(),
		time.Duration(c.Blockchain.BlockhashTTLSeconds)*time.Second,
		priorityFeeLamports,
	)
	if err != nil {
		return engine.Deps{}, built.close, err
	}
	built.txFactory = txFactory

	jupClient := jupiter.NewClient(c.Jupiter.QuoteAPIURL, c.Jupiter.SlippageBps, time.Duration(c.Jupiter.TimeoutSeconds)*time.Second)
	solUSD := newSOLUSDTracker(jupClient)

	store, err := storage.NewDB(c.Storage.SQLitePath)
	if err != nil {
		return engine.Deps{}, built.close, err
	}
	built.store = store

	bund := bundler.New(bundler.Config{
		BatchSize:      c.Bundler.BatchSize,
		FlushInterval:  time.Duration(c.Bundler.FlushIntervalMs) * time.Millisecond,
		TipLamports:    c.Bundler.TipLamports,
		TipAccounts:    c.Bundler.TipAccounts,
		RelayURLs:      c.Bundler.RelayURLs,
	}, txFactory)
	bund.Start(context.Background())
	built.bundle = bund

	metrics := trading.NewMetrics()

	registry := prometheus.NewRegistry()
	promMetrics := observability.NewMetrics(registry)
	checker := health.NewChecker(cfg.GetFallbackRPCURL(), firstRelay(c.Bundler.RelayURLs))
	checker.Start(context.Background())
	built.checker = checker

	obsServer := observability.NewServer(c.Observability.ListenAddr, registry, checker)
	if c.Observability.Enabled {
		go func() {
			if err := obsServer.Start(); err != nil {
				log.Warn().Err(err).Msg("observability server exited")
			}
		}()
	}
	built.obsServer = obsServer

	positions := position.NewManager(c.Risk.VolatilityLookbackPeriods)
	riskEngine := risk.NewEngine(riskConfig(c.Risk))

	val := validator.New(validator.Config{
		MinLiquidityUSD: 0,
		MaxAgeForEntry:  0,
	}, nil)

	poolOf := newPoolRegistry()
	wsClient := wsrpc.NewClient(cfg.GetShyftWSURL())
	wsClient.SetCallbacks(func(err error) {
		log.Warn().Err(err).Msg("price feed websocket disconnected")
	})
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connectCancel()
	if err := wsClient.Connect(connectCtx); err != nil {
		log.Warn().Err(err).Msg("price feed websocket failed to connect, continuing without live prices")
	}
	built.wsClient = wsClient

	priceFeed := feed.NewWebsocketFeed(wsClient, poolOf.lookup, solUSD)
	discoveryFeed := feed.NewManualDiscoveryFeed()

	active := buildStrategy(c.Strategy)

	buyExec := makeBuyExecutor(jupClient, txFactory, wallet, bund, c, metrics, promMetrics, solUSD)
	sellExec := makeSellExecutor(jupClient, txFactory, wallet, bund, c, metrics, promMetrics, solUSD)

	deps := engine.Deps{
		PriceFeed:     priceFeed,
		DiscoveryFeed: discoveryFeed,
		Validator:     val,
		Strategies:    strategy.New(active),
		Risk:          riskEngine,
		Positions:     positions,
		Store:         store,
		BuyExecutor:   buyExec,
		SellExecutor:  sellExec,
		SOLUSD:        solUSD,
	}

	return deps, built.close, nil
}

func loadWallet(cfg *config.Manager) (*blockchain.Wallet, error) {
	if key := cfg.GetPrivateKey(); key != "" {
		return blockchain.NewWallet(key)
	}
	keyStore := blockchain.NewKeyStore("./data", 10*time.Minute)
	wallet, err := keyStore.GetOrGenerate()
	if err != nil {
		return nil, err
	}
	log.Warn().Str("address", wallet.Address()).Msg("using auto-generated wallet; fund this address to trade")
	return wallet, nil
}

func engineConfig(cfg *config.Manager) engine.Config {
	c := cfg.Get()
	return engine.Config{
		MaxPositions:       c.Strategy.MaxPositions,
		MaxConcurrentBuys:  c.Strategy.MaxConcurrentBuys,
		BlockBuy:           c.Strategy.BlockBuy,
		SolAmountPerTrade:  c.Strategy.SolAmountPerTrade,
		AutoSellAll:        c.Strategy.AutoSellAll,
		SellAllInterval:    time.Duration(c.Strategy.SellAllIntervalMs) * time.Millisecond,
		SplSellBatch:       c.Strategy.SplSellBatch,
		SellWait:           time.Duration(c.Strategy.SellWaitMs) * time.Millisecond,
		TickInterval:       time.Second,
		VolatilityLookback: c.Risk.VolatilityLookbackPeriods,
	}
}

func riskConfig(c config.RiskConfig) risk.Config {
	return risk.Config{
		Rug: risk.RugConfig{
			WindowSeconds:       c.Rug.WindowSeconds,
			MinTicks:            c.Rug.MinTicks,
			TickDropThreshold:   c.Rug.TickDropThreshold,
			VolumeDropThreshold: c.Rug.VolumeDropThreshold,
			VelocityThreshold:   c.Rug.VelocityThreshold,
			ConfidenceThreshold: c.Rug.ConfidenceThreshold,
			LiqDropThreshold:    c.Rug.LiqDropThreshold,
		},
		Chop: risk.ChopConfig{
			ChoppyThreshold: c.Chop.ChoppyThreshold,
			Mode:            risk.ChopAction(c.Chop.Mode),
			MaxConsecutive:  c.Chop.MaxConsecutive,
			PauseDuration:   c.Chop.PauseDuration,
			RecoveryWait:    c.Chop.RecoveryWait,
		},
		TimeExit: risk.TimeExitConfig{
			Mode:               risk.TimeExitMode(c.TimeExit.Mode),
			MaxHold:            c.TimeExit.MaxHold,
			ProfitReduction:    c.TimeExit.ProfitReduction,
			LossExtension:      c.TimeExit.LossExtension,
			QuickExitLossPct:   c.TimeExit.QuickExitLossPct,
			QuickExitTime:      c.TimeExit.QuickExitTime,
			FlatRangeThreshold: c.TimeExit.FlatRangeThreshold,
			TimeToFlat:         c.TimeExit.TimeToFlat,
		},
		Trailing: risk.TrailingConfig{
			MinProfitBeforeTrailing: c.Trailing.MinProfitBeforeTrailing,
			TrailingPct:             c.Trailing.TrailingPct,
		},
	}
}

// buildStrategy selects the configured strategy variant and wraps it
// with the configured entry-timing policy. Unknown or unset types fall
// back to ShitcoinScalper, the teacher's original always-on strategy.
func buildStrategy(c config.StrategyConfig) strategy.Strategy {
	var inner strategy.Strategy
	switch c.Type {
	case "rsi":
		inner = strategy.NewRSIStrategy(strategy.RSIConfig{
			Period: c.RSI.Period, Oversold: c.RSI.Oversold, Overbought: c.RSI.Overbought, MinHoldMs: c.RSI.MinHoldMs,
		})
	case "breakout":
		inner = strategy.NewBreakout(strategy.BreakoutConfig{Lookback: c.Breakout.Lookback, BufferPct: c.Breakout.BufferPct})
	case "bollinger":
		inner = strategy.NewBollingerMeanReversion(strategy.BollingerConfig{Period: c.Bollinger.Period, K: c.Bollinger.K})
	case "momentum":
		inner = strategy.NewMomentum(strategy.MomentumConfig{
			Period: c.Momentum.Period, BuyThreshold: c.Momentum.BuyThreshold, SellThreshold: c.Momentum.SellThreshold, MaxHoldMs: c.Momentum.MaxHoldMs,
		})
	case "technical_combined":
		inner = strategy.NewTechnicalCombined(strategy.TechnicalCombinedConfig{
			SMAFastPeriod: c.TechnicalCombined.SMAFastPeriod, SMASlowPeriod: c.TechnicalCombined.SMASlowPeriod,
			RSIPeriod: c.TechnicalCombined.RSIPeriod, BreakoutLookback: c.TechnicalCombined.BreakoutLookback,
			WeightTrend: c.TechnicalCombined.WeightTrend, WeightRSI: c.TechnicalCombined.WeightRSI,
			WeightBreakout: c.TechnicalCombined.WeightBreakout, DecisionThreshold: c.TechnicalCombined.DecisionThreshold,
		})
	default:
		inner = strategy.NewShitcoinScalper(strategy.ShitcoinScalperConfig{
			MaxHeld: c.ShitcoinScalper.MaxHeld, ProfitTake: c.ShitcoinScalper.ProfitTake, StopLoss: c.ShitcoinScalper.StopLoss,
			MaxHoldMs: c.ShitcoinScalper.MaxHoldMs, MinProfitBeforeTrailing: c.ShitcoinScalper.MinProfitBeforeTrailing,
			TrailingPct: c.ShitcoinScalper.TrailingPct,
		})
	}

	switch c.EntryTiming {
	case "delayed":
		return strategy.NewDelayedEntry(inner, time.Duration(c.EntryDelayMs)*time.Millisecond)
	case "batch":
		return strategy.NewBatchAccumulate(inner, c.BatchSize, time.Duration(c.BatchMaxWaitMs)*time.Millisecond)
	case "pumpfun_priority":
		return strategy.NewPumpFunPriority(inner, time.Duration(c.EntryDelayMs)*time.Millisecond)
	default:
		return strategy.NewImmediate(inner)
	}
}

func firstRelay(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// poolRegistry is an in-memory mint-to-pool-account map. Populating it
// is out of this repository's scope (a pool-discovery indexer or a
// block-explorer client would feed it); Register exists so a future
// discovery-side adapter has a concrete seam to call.
type poolRegistry struct {
	pools map[string]string
}

func newPoolRegistry() *poolRegistry { return &poolRegistry{pools: make(map[string]string)} }

func (r *poolRegistry) Register(mint, pool string) { r.pools[mint] = pool }

func (r *poolRegistry) lookup(mint string) (string, error) {
	if pool, ok := r.pools[mint]; ok {
		return pool, nil
	}
	return "", errPoolNotRegistered{mint: mint}
}

type errPoolNotRegistered struct{ mint string }

func (e errPoolNotRegistered) Error() string { return "no pool registered for mint " + e.mint }

// newSOLUSDTracker returns a cheap, periodically refreshed SOL/USD
// rate backed by a Jupiter quote of 1 SOL into USDC, same pattern the
// teacher's BalanceTracker uses for periodic refresh.
func newSOLUSDTracker(jupClient *jupiter.Client) func() float64 {
	var rate float64 = 150.0 // seed until the first refresh completes
	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		quote, err := jupClient.GetQuote(ctx, jupiter.SOLMint, usdcMint, 1_000_000_000)
		if err != nil {
			log.Debug().Err(err).Msg("SOL/USD refresh failed, keeping last rate")
			return
		}
		out, err := decimal.NewFromString(quote.OutAmount)
		if err != nil {
			return
		}
		rate = out.Div(decimal.NewFromInt(1_000_000)).InexactFloat64()
	}
	refresh()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			refresh()
		}
	}()
	return func() float64 { return rate }
}

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// makeBuyExecutor returns an order.Executor that quotes, signs, and
// enqueues a buy of req.Amount SOL-denominated lamports for req.Mint.
func makeBuyExecutor(
	jupClient *jupiter.Client,
	txFactory *blockchain.TransactionBuilder,
	wallet *blockchain.Wallet,
	bund *bundler.Bundler,
	c *config.Config,
	metrics *trading.ExecutionMetrics,
	prom *observability.Metrics,
	solUSD func() float64,
) order.Executor {
	return func(ctx context.Context, req order.Request) (order.Result, error) {
		timer := trading.NewTimer()
		lamports := req.Amount.Mul(decimal.NewFromInt(1_000_000_000)).BigInt().Uint64()

		quote, err := jupClient.GetQuote(ctx, jupiter.SOLMint, c.Strategy.SwapMint, lamports)
		timer.MarkQuoteDone()
		if err != nil {
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}

		swapTxB64, err := jupClient.GetSwapTransaction(ctx, jupiter.SOLMint, req.Mint, wallet.Address(), lamports)
		if err != nil {
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}

		signStart := time.Now()
		signedTx, err := txFactory.ReSignSwapTransaction(swapTxB64)
		timer.MarkSignDone()
		prom.SignLatencyMs.Observe(float64(time.Since(signStart).Milliseconds()))
		if err != nil {
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}

		if err := bund.Enqueue(signedTx); err != nil {
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}
		timer.MarkSendDone()

		executedPrice := executedPriceFromQuote(quote, solUSD())
		prom.BuysTotal.Inc()
		quoteMs, signMs, sendMs := timer.Breakdown()
		metrics.RecordFill(quoteMs, signMs, sendMs)

		return order.Result{
			Status:         order.StatusFilled,
			ExecutedAmount: req.Amount,
			ExecutedPrice:  executedPrice,
		}, nil
	}
}

// makeSellExecutor mirrors makeBuyExecutor for the opposite direction:
// swap_mint -> SOL.
func makeSellExecutor(
	jupClient *jupiter.Client,
	txFactory *blockchain.TransactionBuilder,
	wallet *blockchain.Wallet,
	bund *bundler.Bundler,
	c *config.Config,
	metrics *trading.ExecutionMetrics,
	prom *observability.Metrics,
	solUSD func() float64,
) order.Executor {
	return func(ctx context.Context, req order.Request) (order.Result, error) {
		timer := trading.NewTimer()
		quantity := req.Amount.BigInt().Uint64()

		quote, err := jupClient.GetQuote(ctx, req.Mint, jupiter.SOLMint, quantity)
		timer.MarkQuoteDone()
		if err != nil {
			prom.SellFailures.Inc()
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}

		swapTxB64, err := jupClient.GetSwapTransaction(ctx, req.Mint, jupiter.SOLMint, wallet.Address(), quantity)
		if err != nil {
			prom.SellFailures.Inc()
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}

		signStart := time.Now()
		signedTx, err := txFactory.ReSignSwapTransaction(swapTxB64)
		timer.MarkSignDone()
		prom.SignLatencyMs.Observe(float64(time.Since(signStart).Milliseconds()))
		if err != nil {
			prom.SellFailures.Inc()
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}

		priority := bundlerPriority(req.Priority)
		_ = priority // priority currently only affects tip sizing at the bundler config level

		if err := bund.Enqueue(signedTx); err != nil {
			prom.SellFailures.Inc()
			metrics.RecordReject()
			return order.Result{Status: order.StatusRejected}, err
		}
		timer.MarkSendDone()

		executedPrice := executedPriceFromQuote(quote, solUSD())
		prom.SellsTotal.Inc()
		quoteMs, signMs, sendMs := timer.Breakdown()
		metrics.RecordFill(quoteMs, signMs, sendMs)

		return order.Result{
			Status:         order.StatusFilled,
			ExecutedAmount: req.Amount,
			ExecutedPrice:  executedPrice,
		}, nil
	}
}

func bundlerPriority(p order.Priority) string { return string(p) }

// executedPriceFromQuote derives a USD fill price from a Jupiter quote's
// in/out lamport amounts and the current SOL/USD rate.
func executedPriceFromQuote(q *jupiter.QuoteResponse, solUSD float64) decimal.Decimal {
	in, errIn := decimal.NewFromString(q.InAmount)
	out, errOut := decimal.NewFromString(q.OutAmount)
	if errIn != nil || errOut != nil || out.IsZero() {
		return decimal.Zero
	}
	return in.Div(out).Mul(decimal.NewFromFloat(solUSD))
}
