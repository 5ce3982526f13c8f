package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"volumebot-go/internal/config"
	"volumebot-go/internal/exchange"
	"volumebot-go/internal/paper"
)

func TestOpenPaperWithFills(t *testing.T) {
	cfg := config.Defaults()
	cfg.Paper.FillsPath = filepath.Join(t.TempDir(), "fills", "paper.jsonl")

	gw, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := gw.(*paper.Venue); !ok {
		t.Fatalf("expected paper venue, got %T", gw)
	}
	if _, err := gw.CreateMarketOrder(context.Background(), exchange.OrderRequest{
		Instrument: cfg.Trading.Instrument, Side: exchange.Buy, Leverage: 5, TimeInForce: exchange.IOC, CashQuantity: 100,
	}); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(cfg.Paper.FillsPath)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected a recorded fill, err=%v", err)
	}
}

func TestOpenREST(t *testing.T) {
	cfg := config.Defaults()
	cfg.Exchange.Venue = config.VenueREST
	cfg.Exchange.BaseURL = "http://127.0.0.1:1"
	cfg.Exchange.StreamURL = "ws://127.0.0.1:1/ws"
	cfg.Exchange.PrivateKey = "secret"

	gw, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := gw.(*exchange.RESTGateway); !ok {
		t.Fatalf("expected REST gateway, got %T", gw)
	}
}

func TestOpenUnknownVenue(t *testing.T) {
	cfg := config.Defaults()
	cfg.Exchange.Venue = "carrier-pigeon"
	if _, err := Open(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown venue")
	}
}
