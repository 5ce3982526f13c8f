package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const testKey = "test-private-key"

func newTestGateway(t *testing.T, handler http.Handler) (*RESTGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	gw := NewRESTGateway(server.URL+"/", wsURL, Credentials{PrivateKey: testKey}, zerolog.Nop(),
		WithHTTPClient(server.Client()),
		WithAckTimeout(2*time.Second),
	)
	t.Cleanup(func() { _ = gw.Close() })
	return gw, server
}

func TestCredentialsToken(t *testing.T) {
	token, err := Credentials{APIKey: "key-1", PrivateKey: testKey}.Token()
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte(testKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	sub, _ := parsed.Claims.GetSubject()
	if sub != "key-1" {
		t.Fatalf("expected subject key-1, got %s", sub)
	}

	if _, err := (Credentials{}).Token(); err == nil {
		t.Fatalf("expected error without private key")
	}
	if (Credentials{PrivateKey: "x"}).Subject() != "wallet" {
		t.Fatalf("expected wallet subject without api key")
	}
}

func TestFetchMarketDepthAndTrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/BTCUSD:DEMO/depth", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("maxLevel") != "1" {
			t.Errorf("expected maxLevel=1, got %s", r.URL.RawQuery)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer token")
		}
		_, _ = w.Write([]byte(`{"bids":[{"price":100,"quantity":1}],"asks":[{"price":102,"quantity":2}]}`))
	})
	mux.HandleFunc("/api/market/BTCUSD:DEMO/trades", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("expected limit=1, got %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"price":105,"quantity":0.1,"side":"BUY"}]`))
	})
	gw, _ := newTestGateway(t, mux)

	depth, err := gw.FetchMarketDepth(context.Background(), "BTCUSD:DEMO", 1)
	if err != nil {
		t.Fatalf("FetchMarketDepth returned error: %v", err)
	}
	if len(depth.Bids) != 1 || depth.Bids[0].Price != 100 || depth.Asks[0].Price != 102 {
		t.Fatalf("unexpected depth: %+v", depth)
	}

	trades, err := gw.FetchTrades(context.Background(), "BTCUSD:DEMO", 1)
	if err != nil {
		t.Fatalf("FetchTrades returned error: %v", err)
	}
	if len(trades) != 1 || trades[0].Price != 105 {
		t.Fatalf("unexpected trades: %+v", trades)
	}
}

func TestCreateMarketOrderPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/order/market", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["cashQuantity"] != "50.000000" || body["timeInForce"] != "IOC" || body["side"] != "BUY" {
			t.Errorf("unexpected payload: %+v", body)
		}
		if body["leverage"] != float64(5) || body["clientOrderId"] != "cid-1" {
			t.Errorf("unexpected payload: %+v", body)
		}
		_, _ = w.Write([]byte(`{"id":"ord-1","status":"FILLED"}`))
	})
	gw, _ := newTestGateway(t, mux)

	order, err := gw.CreateMarketOrder(context.Background(), OrderRequest{
		Instrument: "BTCUSD:DEMO", Side: Buy, Leverage: 5, TimeInForce: IOC, CashQuantity: 50, ClientOrderID: "cid-1",
	})
	if err != nil {
		t.Fatalf("CreateMarketOrder returned error: %v", err)
	}
	if order.ID != "ord-1" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
}

func TestCreateMarketOrderRejectionCarriesPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/order/market", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"insufficient margin"}`)
	})
	gw, _ := newTestGateway(t, mux)

	_, err := gw.CreateMarketOrder(context.Background(), OrderRequest{Instrument: "X", Side: Sell, CashQuantity: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(string(apiErr.Body), "insufficient margin") {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestAccountLeverageAndRESTFallbacks(t *testing.T) {
	var leverage int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"acc-9","wallet":"0xabc"}`))
	})
	mux.HandleFunc("/api/position/ETHUSD", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		var body struct{ Leverage int }
		_ = json.NewDecoder(r.Body).Decode(&body)
		leverage = body.Leverage
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/user/balance", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"availableBalance":1234.5,"currency":"USDT"}`))
	})
	mux.HandleFunc("/api/position", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"instrument":"ETHUSD","side":"BUY","quantity":0.2,"avgPrice":3000}]`))
	})
	gw, _ := newTestGateway(t, mux)
	ctx := context.Background()

	if err := gw.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	acc, err := gw.Account(ctx)
	if err != nil || acc.ID != "acc-9" {
		t.Fatalf("unexpected account %+v err %v", acc, err)
	}
	if err := gw.SetLeverage(ctx, "ETHUSD", 7); err != nil {
		t.Fatalf("SetLeverage returned error: %v", err)
	}
	if leverage != 7 {
		t.Fatalf("expected leverage 7 sent, got %d", leverage)
	}
	bal, err := gw.AvailableBalance(ctx)
	if err != nil || bal.Available != 1234.5 {
		t.Fatalf("unexpected balance %+v err %v", bal, err)
	}
	positions, err := gw.Positions(ctx)
	if err != nil || len(positions) != 1 || positions[0].AvgPrice != 3000 {
		t.Fatalf("unexpected positions %+v err %v", positions, err)
	}
}

func TestConnectRequiresKey(t *testing.T) {
	gw := NewRESTGateway("https://venue.test", "", Credentials{}, zerolog.Nop())
	if err := gw.Connect(context.Background()); err == nil {
		t.Fatalf("expected error without private key")
	}
}

func TestSubscribeBalanceStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		var cmd streamCommand
		if err := conn.ReadJSON(&cmd); err != nil || cmd.Method != "subscribe" || cmd.Channel != "balance" {
			t.Errorf("unexpected subscribe command %+v err %v", cmd, err)
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "subscribed", "channel": "balance"})
		_ = conn.WriteJSON(map[string]any{
			"type": "balance", "availableBalance": 900.0, "currency": "USDT",
			"positions": []map[string]any{{"instrument": "BTCUSD", "side": "SELL", "quantity": 0.001, "avgPrice": 50000}},
		})
		<-release
	})
	mux.HandleFunc("/api/user/balance", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("balance should come from the stream")
	})
	gw, _ := newTestGateway(t, mux)
	defer close(release)

	if err := gw.SubscribeBalance(context.Background()); err != nil {
		t.Fatalf("SubscribeBalance returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := gw.snapshot(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for streamed balance")
		}
		time.Sleep(10 * time.Millisecond)
	}
	bal, err := gw.AvailableBalance(context.Background())
	if err != nil || bal.Available != 900 {
		t.Fatalf("unexpected balance %+v err %v", bal, err)
	}
	positions, _ := gw.Positions(context.Background())
	if len(positions) != 1 || positions[0].Side != Sell {
		t.Fatalf("unexpected positions %+v", positions)
	}

	if err := gw.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if err := gw.SubscribeBalance(context.Background()); err == nil {
		t.Fatalf("expected subscribe after close to fail")
	}
}

func TestSubscribeBalanceRejected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var cmd streamCommand
		_ = conn.ReadJSON(&cmd)
		_ = conn.WriteJSON(map[string]any{"type": "error", "error": "unauthorized"})
	})
	gw, _ := newTestGateway(t, mux)

	err := gw.SubscribeBalance(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestPositionsSkipStreamPushOlderThanLastOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	var restCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		var cmd streamCommand
		_ = conn.ReadJSON(&cmd)
		_ = conn.WriteJSON(map[string]any{"type": "subscribed", "channel": "balance"})
		_ = conn.WriteJSON(map[string]any{"type": "balance", "availableBalance": 900.0, "positions": []map[string]any{}})
		<-release
	})
	mux.HandleFunc("/api/order/market", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"ord-1","status":"FILLED"}`))
	})
	mux.HandleFunc("/api/position", func(w http.ResponseWriter, r *http.Request) {
		restCalls.Add(1)
		_, _ = w.Write([]byte(`[{"instrument":"BTCUSD","side":"BUY","quantity":0.001,"avgPrice":50000}]`))
	})
	gw, _ := newTestGateway(t, mux)
	defer close(release)
	ctx := context.Background()

	if err := gw.SubscribeBalance(ctx); err != nil {
		t.Fatalf("SubscribeBalance returned error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := gw.snapshot(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for streamed balance")
		}
		time.Sleep(10 * time.Millisecond)
	}

	positions, err := gw.Positions(ctx)
	if err != nil || len(positions) != 0 || restCalls.Load() != 0 {
		t.Fatalf("expected streamed empty book before any order, got %+v err %v rest %d", positions, err, restCalls.Load())
	}

	if _, err := gw.CreateMarketOrder(ctx, OrderRequest{Instrument: "BTCUSD", Side: Buy, Leverage: 1, TimeInForce: IOC, CashQuantity: 50}); err != nil {
		t.Fatalf("CreateMarketOrder returned error: %v", err)
	}
	positions, err = gw.Positions(ctx)
	if err != nil || len(positions) != 1 || positions[0].Side != Buy || restCalls.Load() != 1 {
		t.Fatalf("expected REST positions after the order, got %+v err %v rest %d", positions, err, restCalls.Load())
	}
}
