package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var _ Gateway = (*RESTGateway)(nil)

const (
	streamReadTimeout = 30 * time.Second
	streamPingEvery   = 15 * time.Second
	balanceChannel    = "balance"
)

// BalanceSnapshot is the latest state pushed on the balance channel.
type BalanceSnapshot struct {
	Balance   Balance
	Positions []Position
	At        time.Time
}

type streamCommand struct {
	Method  string `json:"method"`
	Channel string `json:"channel"`
}

type streamMessage struct {
	Type             string     `json:"type"`
	Channel          string     `json:"channel"`
	Error            string     `json:"error"`
	AvailableBalance float64    `json:"availableBalance"`
	Currency         string     `json:"currency"`
	Positions        []Position `json:"positions"`
}

type balanceStream struct {
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	snap    BalanceSnapshot
	hasSnap bool
	live    bool

	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func dialBalanceStream(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header, ackTimeout time.Duration, log zerolog.Logger) (*balanceStream, error) {
	if url == "" {
		return nil, errors.New("stream url is required")
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(streamCommand{Method: "subscribe", Channel: balanceChannel}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	deadline := time.Now().Add(ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	s := &balanceStream{conn: conn, log: log, done: make(chan struct{}), live: true}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("await subscribe ack: %w", err)
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		if msg.Type == "error" {
			conn.Close()
			return nil, fmt.Errorf("subscribe rejected: %s", msg.Error)
		}
		if msg.Type == "subscribed" && msg.Channel == balanceChannel {
			break
		}
		s.apply(msg)
	}
	log.Info().Msg("balance subscription active")

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})

	pingCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.ping(pingCtx)
	go s.read()
	return s, nil
}

// Snapshot reports the latest pushed balance while the stream is alive.
func (s *balanceStream) Snapshot() (BalanceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live || !s.hasSnap {
		return BalanceSnapshot{}, false
	}
	out := s.snap
	out.Positions = append([]Position(nil), s.snap.Positions...)
	return out, true
}

func (s *balanceStream) apply(msg streamMessage) {
	if msg.Type != balanceChannel {
		return
	}
	s.mu.Lock()
	s.snap = BalanceSnapshot{
		Balance:   Balance{Available: msg.AvailableBalance, Currency: msg.Currency},
		Positions: msg.Positions,
		At:        time.Now(),
	}
	s.hasSnap = true
	s.mu.Unlock()
}

func (s *balanceStream) read() {
	defer close(s.done)
	defer s.markDead()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("balance stream disconnected")
			}
			return
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		s.apply(msg)
	}
}

func (s *balanceStream) ping(ctx context.Context) {
	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Msg("balance stream ping failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *balanceStream) markDead() {
	s.mu.Lock()
	s.live = false
	s.mu.Unlock()
}

// Close sends a close frame and waits for the reader to exit.
func (s *balanceStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
		}
	})
	return err
}
