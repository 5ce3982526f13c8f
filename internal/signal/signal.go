// Package signal turns process termination signals into a graceful stop.
package signal

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// Watch blocks until SIGINT or SIGTERM arrives, or ctx ends. On a signal it logs it and
// calls stop, then returns true. A second signal while stop is still running is logged and
// otherwise ignored.
func Watch(ctx context.Context, log zerolog.Logger, stop func()) bool {
	ch := make(chan os.Signal, 2)
	ossignal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	defer ossignal.Stop(ch)
	return watch(ctx, ch, log, stop)
}

func watch(ctx context.Context, ch <-chan os.Signal, log zerolog.Logger, stop func()) bool {
	select {
	case <-ctx.Done():
		return false
	case s := <-ch:
		log.Info().Str("signal", s.String()).Msg("received signal, shutting down gracefully")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stop()
	}()
	for {
		select {
		case <-done:
			return true
		case s := <-ch:
			log.Warn().Str("signal", s.String()).Msg("shutdown already in progress")
		}
	}
}
