// Package gateway builds the venue session selected by configuration.
package gateway

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"volumebot-go/internal/config"
	"volumebot-go/internal/exchange"
	"volumebot-go/internal/paper"
)

const tokenTTL = time.Minute

// Open returns the paper venue or the REST client named by cfg.Exchange.Venue.
func Open(cfg *config.Config, log zerolog.Logger) (exchange.Gateway, error) {
	switch cfg.Exchange.Venue {
	case config.VenuePaper:
		return openPaper(cfg.Paper, log.With().Str("venue", "paper").Logger())
	case config.VenueREST:
		ex := cfg.Exchange
		creds := exchange.Credentials{APIKey: ex.APIKey, PrivateKey: ex.PrivateKey, TTL: tokenTTL}
		return exchange.NewRESTGateway(ex.BaseURL, ex.StreamURL, creds,
			log.With().Str("venue", "rest").Str("environment", ex.Environment).Logger(),
			exchange.WithRequestTimeout(ex.RequestTimeout()),
			exchange.WithAckTimeout(ex.RequestTimeout()),
		), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", cfg.Exchange.Venue)
	}
}

func openPaper(p config.Paper, log zerolog.Logger) (exchange.Gateway, error) {
	opts := []paper.VenueOption{paper.WithSpread(p.SpreadBps, p.StepBps)}
	if p.FillsPath != "" {
		rec, err := paper.NewJSONLRecorder(p.FillsPath)
		if err != nil {
			return nil, fmt.Errorf("open fills file: %w", err)
		}
		opts = append(opts, paper.WithRecorder(rec))
		log.Info().Str("path", p.FillsPath).Msg("recording paper fills")
	}
	return paper.NewVenue(p.StartingCash, p.StartPrice, log, opts...), nil
}
