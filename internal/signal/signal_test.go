package signal

import (
	"bytes"
	"context"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatchCallsStopOnSignal(t *testing.T) {
	var buf bytes.Buffer
	ch := make(chan os.Signal, 1)
	ch <- syscall.SIGTERM

	calls := 0
	if !watch(context.Background(), ch, zerolog.New(&buf), func() { calls++ }) {
		t.Fatalf("expected watch to report a signal")
	}
	if calls != 1 {
		t.Fatalf("stop called %d times", calls)
	}
	if !strings.Contains(buf.String(), "terminated") {
		t.Fatalf("expected signal name in log: %s", buf.String())
	}
}

func TestWatchIgnoresRepeatedSignals(t *testing.T) {
	ch := make(chan os.Signal, 2)
	ch <- os.Interrupt
	release := make(chan struct{})
	calls := make(chan struct{}, 4)

	done := make(chan bool, 1)
	go func() {
		done <- watch(context.Background(), ch, zerolog.Nop(), func() {
			calls <- struct{}{}
			<-release
		})
	}()

	<-calls
	ch <- os.Interrupt
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("expected signal result")
		}
	case <-time.After(time.Second):
		t.Fatalf("watch did not return")
	}
	if len(calls) != 0 {
		t.Fatalf("stop must run only once")
	}
}

func TestWatchReturnsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if watch(ctx, make(chan os.Signal), zerolog.Nop(), func() { t.Fatalf("stop must not run") }) {
		t.Fatalf("expected no signal")
	}
}
