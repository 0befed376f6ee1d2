package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"solana-strategy-engine/internal/engine"
	"solana-strategy-engine/internal/feed"
	"solana-strategy-engine/internal/order"
	"solana-strategy-engine/internal/position"
	"solana-strategy-engine/internal/risk"
	"solana-strategy-engine/internal/strategy"
)

// simMint is the fake token the scripted scenario trades.
const simMint = "SimTokenMint1111111111111111111111111111"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Info().Msg("🚀 STARTING SIMULATION MODE 🚀")
	log.Info().Msg("scripted run of the ShitcoinScalper profit-take path, no network I/O")

	discovery := feed.NewManualDiscoveryFeed()
	prices := feed.NewManualPriceFeed()

	positions := position.NewManager(20)
	riskEngine := risk.NewEngine(risk.Config{
		Trailing: risk.TrailingConfig{MinProfitBeforeTrailing: 0.05, TrailingPct: 0.03},
		TimeExit: risk.TimeExitConfig{Mode: risk.TimeExitHardLimit, MaxHold: time.Hour},
	})
	scalper := strategy.NewShitcoinScalper(strategy.ShitcoinScalperConfig{
		MaxHeld:    3,
		ProfitTake: 0.02,
		StopLoss:   0.08,
		MaxHoldMs:  60_000,
	})

	filled := make(chan order.Side, 4)
	buyExec := simExecutor(filled, order.SideBuy)
	sellExec := simExecutor(filled, order.SideSell)

	eng := engine.New(engine.Config{
		MaxPositions:      3,
		MaxConcurrentBuys: 3,
		SolAmountPerTrade: 0.5,
		TickInterval:      20 * time.Millisecond,
	}, engine.Deps{
		PriceFeed:     prices,
		DiscoveryFeed: discovery,
		Validator:     nil,
		Strategies:    strategy.New(scalper),
		Risk:          riskEngine,
		Positions:     positions,
		BuyExecutor:   buyExec,
		SellExecutor:  sellExec,
		SOLUSD:        func() float64 { return 150.0 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("engine failed to start")
	}
	defer eng.Stop()

	log.Info().Msg("--- STEP 1: DISCOVERY ---")
	discovery.Push(feed.DiscoveryEvent{Mint: simMint, Source: "PumpFun"})
	waitForFill(filled, order.SideBuy, "buy")

	log.Info().Msg("--- STEP 2: PRICE TICKS TOWARD PROFIT-TAKE ---")
	for _, p := range []float64{1.00, 1.005, 1.021} {
		prices.Push(feed.PriceEvent{Mint: simMint, PriceUSD: p, Volume: 1000, Timestamp: time.Now()})
		time.Sleep(50 * time.Millisecond) // let the engine's tick loop observe the new price
	}
	waitForFill(filled, order.SideSell, "sell")

	log.Info().Msg("🏁 SIMULATION COMPLETE")
	status, _ := eng.Status(simMint)
	log.Info().Str("finalState", string(status)).Msg("expected Sold")
}

// simExecutor fabricates an immediate fill at a fixed price, standing
// in for the quote/sign/bundle pipeline the live executors in
// cmd/bot/main.go drive. It exists so this scenario exercises the
// engine's state machine and risk/strategy wiring without the network
// collaborators cmd/realtest and cmd/wstest are built to probe.
func simExecutor(notify chan<- order.Side, side order.Side) order.Executor {
	return func(ctx context.Context, req order.Request) (order.Result, error) {
		log.Info().Str("mint", req.Mint).Str("side", string(req.Side)).Str("amount", req.Amount.String()).Msg("sim: order filled")
		notify <- side
		return order.Result{
			Status:         order.StatusFilled,
			ExecutedAmount: req.Amount,
			ExecutedPrice:  decimal.NewFromFloat(1.0),
		}, nil
	}
}

func waitForFill(ch <-chan order.Side, want order.Side, label string) {
	select {
	case got := <-ch:
		if got != want {
			log.Warn().Str("want", string(want)).Str("got", string(got)).Msg("sim: unexpected fill order")
		}
	case <-time.After(2 * time.Second):
		log.Error().Str("label", label).Msg("sim: timed out waiting for fill")
	}
}
