package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"volumebot-go/internal/config"
	"volumebot-go/internal/gateway"
	"volumebot-go/internal/lifecycle"
	"volumebot-go/internal/metrics"
	sig "volumebot-go/internal/signal"
	"volumebot-go/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	boot := util.NewLogger("info")

	cfg, err := config.Resolve(config.DefaultPath(), ".env")
	if err != nil {
		boot.Error().Err(err).Msg("load config")
		return 1
	}
	log := newLogger(cfg.App)

	gw, err := gateway.Open(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("open venue")
		return 1
	}
	ctrl := lifecycle.New(cfg, gw, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sig.Watch(ctx, log, func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		ctrl.Shutdown(shutdownCtx)
	})

	srv := metrics.Server(cfg.App.MetricsAddr)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			stopCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(stopCtx)
		}()
		return ctrl.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("bot exited with error")
		return 1
	}
	return 0
}

func newLogger(app config.App) zerolog.Logger {
	if app.Pretty {
		return util.NewConsoleLogger(app.LogLevel, os.Stdout)
	}
	return util.NewLogger(app.LogLevel)
}
