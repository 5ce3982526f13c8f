package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"volumebot-go/internal/config"
	"volumebot-go/internal/exchange"
	"volumebot-go/internal/lifecycle"
	"volumebot-go/internal/paper"
	"volumebot-go/internal/state"
)

func TestPaperSessionRunsToMaxTrades(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Defaults()
	cfg.Trading.Instrument = "BTCUSD:DEMO"
	cfg.Trading.CashQuantity = 100
	cfg.Trading.MaxTrades = 4
	cfg.Trading.TradeDelayMs = 0
	cfg.Trading.LegDelayMs = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	fillsPath := filepath.Join(t.TempDir(), "fills.jsonl")
	rec, err := paper.NewJSONLRecorder(fillsPath)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	venue := paper.NewVenue(cfg.Paper.StartingCash, cfg.Paper.StartPrice, zerolog.Nop(), paper.WithSeed(7), paper.WithRecorder(rec))

	var buf bytes.Buffer
	ctrl := lifecycle.New(cfg, venue, zerolog.New(&buf))
	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	totals := ctrl.Totals()
	if totals.TradesExecuted != 4 || math.Abs(totals.TotalVolume-800) > 1e-9 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if ctrl.State() != state.Stopped {
		t.Fatalf("expected stopped, got %s", ctrl.State())
	}

	fills := venue.Ledger().Snapshot()
	if len(fills) != 8 {
		t.Fatalf("expected 8 fills, got %d", len(fills))
	}
	for i, fill := range fills {
		want := exchange.Buy
		if i%2 == 1 {
			want = exchange.Sell
		}
		if fill.Side != want || fill.Notional != 100 {
			t.Fatalf("fill %d: %+v", i, fill)
		}
	}
	if pos := venue.PaperAccount().Position(cfg.Trading.Instrument); math.Abs(pos) > 0.001 {
		t.Fatalf("round trips should leave the book nearly flat, got %f", pos)
	}

	if err := venue.Connect(ctx); err == nil {
		t.Fatalf("venue should be closed after shutdown")
	}

	file, err := os.Open(fillsPath)
	if err != nil {
		t.Fatalf("open fills: %v", err)
	}
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var fill paper.Fill
		if err := json.Unmarshal(scanner.Bytes(), &fill); err != nil {
			t.Fatalf("decode fill: %v", err)
		}
		lines++
	}
	if lines != 8 {
		t.Fatalf("expected 8 recorded fills, got %d", lines)
	}

	out := buf.String()
	for _, want := range []string{"volume bot starting", "bot initialized", "reached maximum trades", "final trading statistics", "bot stopped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in log output", want)
		}
	}
}
