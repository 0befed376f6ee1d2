package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-strategy-engine/internal/config"
	"solana-strategy-engine/internal/wsrpc"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	log.Info().Msg("websocket connection test")

	cfg, err := config.NewManager("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	url := cfg.GetShyftWSURL()
	log.Info().Str("url", url[:40]+"...").Msg("connecting to Shyft websocket")

	client := wsrpc.NewClient(url)
	client.SetCallbacks(func(err error) {
		log.Warn().Err(err).Msg("websocket disconnected")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connection failed")
	}
	log.Info().Msg("websocket connected")

	solMint := "So11111111111111111111111111111111111111112"
	subID, err := client.AccountSubscribe(solMint, func(data json.RawMessage) {
		log.Info().RawJSON("data", data).Msg("account update received")
	})
	if err != nil {
		log.Error().Err(err).Msg("subscribe failed")
	} else {
		log.Info().Uint64("subID", subID).Msg("subscribed to SOL mint")
	}

	log.Info().Msg("websocket test running, press Ctrl+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	client.Close()
	log.Info().Msg("websocket closed")
}
