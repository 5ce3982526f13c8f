package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"volumebot-go/internal/config"
)

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== VolumeBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit trading settings")
		fmt.Println("3) Edit venue settings")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch volume bot")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editTrading(reader, cfg)
		case "3":
			editVenue(reader, cfg)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saved: %v\n", err)
			} else if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchBot(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	t := cfg.Trading
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Venue: %s (%s)\n", cfg.Exchange.Venue, cfg.Exchange.Environment)
	fmt.Printf("Instrument: %s\n", t.Instrument)
	fmt.Printf("Order size: %.6f | cash quantity: %.2f\n", t.OrderSize, t.CashQuantity)
	fmt.Printf("Leverage: %dx\n", t.Leverage)
	fmt.Printf("Delays: %s between cycles, %s between legs\n", t.TradeDelay(), t.LegDelay())
	if t.MaxTrades > 0 {
		fmt.Printf("Max trades: %d\n", t.MaxTrades)
	} else {
		fmt.Println("Max trades: unlimited")
	}
	if cfg.Exchange.Venue == config.VenuePaper {
		fmt.Printf("Paper cash: $%.2f | start price: %.2f\n", cfg.Paper.StartingCash, cfg.Paper.StartPrice)
	}
}

func editTrading(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Trading ---")
	t := &cfg.Trading
	t.Instrument = promptString(reader, "Instrument", t.Instrument)
	t.OrderSize = promptFloat(reader, "Order size (base units)", t.OrderSize)
	t.CashQuantity = promptFloat(reader, "Cash quantity per leg (0 = size x mid)", t.CashQuantity)
	t.Leverage = int(promptFloat(reader, "Leverage", float64(t.Leverage)))
	t.TradeDelayMs = int(promptFloat(reader, "Delay between cycles (ms)", float64(t.TradeDelayMs)))
	t.LegDelayMs = int(promptFloat(reader, "Delay between legs (ms)", float64(t.LegDelayMs)))
	t.MaxTrades = int(promptFloat(reader, "Max trades (0 = unlimited)", float64(t.MaxTrades)))
}

func editVenue(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Venue ---")
	ex := &cfg.Exchange
	ex.Venue = promptString(reader, "Venue (paper|rest)", ex.Venue)
	ex.Environment = promptString(reader, "Environment (DEMO|PROD)", ex.Environment)
	if ex.Venue == config.VenueREST {
		ex.BaseURL = promptString(reader, "REST base URL", ex.BaseURL)
		ex.StreamURL = promptString(reader, "Stream URL", ex.StreamURL)
		return
	}
	cfg.Paper.StartingCash = promptFloat(reader, "Paper starting cash", cfg.Paper.StartingCash)
	cfg.Paper.StartPrice = promptFloat(reader, "Paper start price", cfg.Paper.StartPrice)
}

func launchBot(reader *bufio.Reader) {
	fmt.Println("Launching volume bot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/volumebot")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%g]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %g\n", current)
		return current
	}
	return val
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return current
}

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(locateConfig()); errors.Is(err, os.ErrNotExist) {
		return config.Defaults(), nil
	}
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if p := config.DefaultPath(); p != "" {
		return filepath.Clean(p)
	}
	return config.DefaultFile
}
