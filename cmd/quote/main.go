// Command quote prints the reference price the bot would trade at, without placing orders.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"volumebot-go/internal/config"
	"volumebot-go/internal/gateway"
	"volumebot-go/internal/oracle"
	"volumebot-go/internal/util"
)

func main() {
	log := util.NewConsoleLogger("info", os.Stderr)

	cfg, err := config.Resolve(config.DefaultPath(), ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	instrument := cfg.Trading.Instrument
	if len(os.Args) > 1 {
		instrument = os.Args[1]
	}

	gw, err := gateway.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open venue")
	}
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := gw.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	q, err := oracle.New(gw, log).CurrentPrice(ctx, instrument)
	if err != nil {
		log.Error().Err(err).Str("instrument", instrument).Msg("no price")
		os.Exit(1)
	}
	fmt.Printf("%s bid=%.6f ask=%.6f mid=%.6f\n", instrument, q.Bid, q.Ask, q.Mid)
}
