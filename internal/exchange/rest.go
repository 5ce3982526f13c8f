package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultAckTimeout     = 10 * time.Second
)

// RESTGateway talks to the venue over HTTPS and keeps a WebSocket balance subscription.
type RESTGateway struct {
	baseURL    string
	streamURL  string
	creds      Credentials
	httpClient *http.Client
	dialer     *websocket.Dialer
	ackTimeout time.Duration
	log        zerolog.Logger

	mu          sync.Mutex
	stream      *balanceStream
	closed      bool
	lastOrderAt time.Time
}

// RESTOption configures a RESTGateway.
type RESTOption func(*RESTGateway)

// WithHTTPClient swaps the HTTP client, mostly for tests.
func WithHTTPClient(hc *http.Client) RESTOption {
	return func(g *RESTGateway) {
		if hc != nil {
			g.httpClient = hc
		}
	}
}

// WithRequestTimeout bounds every REST call.
func WithRequestTimeout(d time.Duration) RESTOption {
	return func(g *RESTGateway) {
		if d > 0 {
			g.httpClient.Timeout = d
		}
	}
}

// WithAckTimeout bounds how long SubscribeBalance waits for the subscription ack.
func WithAckTimeout(d time.Duration) RESTOption {
	return func(g *RESTGateway) {
		if d > 0 {
			g.ackTimeout = d
		}
	}
}

// NewRESTGateway constructs a gateway; no network traffic happens until Connect.
func NewRESTGateway(baseURL, streamURL string, creds Credentials, log zerolog.Logger, opts ...RESTOption) *RESTGateway {
	g := &RESTGateway{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		streamURL:  strings.TrimSpace(streamURL),
		creds:      creds,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		ackTimeout: defaultAckTimeout,
		log:        log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect checks that the credentials can sign requests.
func (g *RESTGateway) Connect(ctx context.Context) error {
	if g.baseURL == "" {
		return errors.New("base url is required")
	}
	if _, err := g.creds.Token(); err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	g.log.Info().Str("base_url", g.baseURL).Str("subject", g.creds.Subject()).Msg("venue session ready")
	return nil
}

func (g *RESTGateway) Account(ctx context.Context) (Account, error) {
	var out Account
	if err := g.do(ctx, http.MethodGet, "/api/user/me", nil, nil, &out); err != nil {
		return Account{}, fmt.Errorf("fetch account: %w", err)
	}
	return out, nil
}

func (g *RESTGateway) FetchMarketDepth(ctx context.Context, instrument string, maxLevel int) (Depth, error) {
	q := url.Values{}
	q.Set("maxLevel", strconv.Itoa(maxLevel))
	var out Depth
	if err := g.do(ctx, http.MethodGet, "/api/market/"+url.PathEscape(instrument)+"/depth", q, nil, &out); err != nil {
		return Depth{}, fmt.Errorf("fetch depth: %w", err)
	}
	return out, nil
}

func (g *RESTGateway) FetchTrades(ctx context.Context, instrument string, limit int) ([]Trade, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var out []Trade
	if err := g.do(ctx, http.MethodGet, "/api/market/"+url.PathEscape(instrument)+"/trades", q, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	return out, nil
}

type marketOrderPayload struct {
	Instrument    string      `json:"instrument"`
	Side          Side        `json:"side"`
	Leverage      int         `json:"leverage"`
	TimeInForce   TimeInForce `json:"timeInForce"`
	CashQuantity  string      `json:"cashQuantity"`
	ClientOrderID string      `json:"clientOrderId,omitempty"`
}

func (g *RESTGateway) CreateMarketOrder(ctx context.Context, req OrderRequest) (Order, error) {
	payload := marketOrderPayload{
		Instrument:    req.Instrument,
		Side:          req.Side,
		Leverage:      req.Leverage,
		TimeInForce:   req.TimeInForce,
		CashQuantity:  strconv.FormatFloat(req.CashQuantity, 'f', 6, 64),
		ClientOrderID: req.ClientOrderID,
	}
	var out Order
	if err := g.do(ctx, http.MethodPost, "/api/order/market", nil, payload, &out); err != nil {
		return Order{}, err
	}
	if out.ID == "" {
		return Order{}, errors.New("venue returned an order without id")
	}
	g.mu.Lock()
	g.lastOrderAt = time.Now()
	g.mu.Unlock()
	return out, nil
}

func (g *RESTGateway) SetLeverage(ctx context.Context, instrument string, leverage int) error {
	body := map[string]int{"leverage": leverage}
	if err := g.do(ctx, http.MethodPut, "/api/position/"+url.PathEscape(instrument), nil, body, nil); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// AvailableBalance prefers the streamed snapshot and falls back to REST.
func (g *RESTGateway) AvailableBalance(ctx context.Context) (Balance, error) {
	if snap, ok := g.snapshot(); ok {
		return snap.Balance, nil
	}
	var out Balance
	if err := g.do(ctx, http.MethodGet, "/api/user/balance", nil, nil, &out); err != nil {
		return Balance{}, fmt.Errorf("fetch balance: %w", err)
	}
	return out, nil
}

// Positions uses the streamed snapshot only when it was pushed after the last accepted
// order; otherwise the push may not include that fill yet and REST is asked instead.
func (g *RESTGateway) Positions(ctx context.Context) ([]Position, error) {
	if snap, ok := g.snapshot(); ok && snap.At.After(g.lastOrder()) {
		return snap.Positions, nil
	}
	var out []Position
	if err := g.do(ctx, http.MethodGet, "/api/position", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return out, nil
}

// SubscribeBalance opens the stream and returns once the venue acknowledged the subscription.
func (g *RESTGateway) SubscribeBalance(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errors.New("gateway closed")
	}
	if g.stream != nil {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	header, err := g.authHeader()
	if err != nil {
		return err
	}
	stream, err := dialBalanceStream(ctx, g.dialer, g.streamURL, header, g.ackTimeout, g.log)
	if err != nil {
		return fmt.Errorf("subscribe balance: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.stream != nil {
		_ = stream.Close()
		if g.closed {
			return errors.New("gateway closed")
		}
		return nil
	}
	g.stream = stream
	return nil
}

// Close stops the balance stream and drops idle HTTP connections.
func (g *RESTGateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	stream := g.stream
	g.stream = nil
	g.mu.Unlock()

	g.httpClient.CloseIdleConnections()
	if stream != nil {
		return stream.Close()
	}
	return nil
}

func (g *RESTGateway) lastOrder() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOrderAt
}

func (g *RESTGateway) snapshot() (BalanceSnapshot, bool) {
	g.mu.Lock()
	stream := g.stream
	g.mu.Unlock()
	if stream == nil {
		return BalanceSnapshot{}, false
	}
	return stream.Snapshot()
}

func (g *RESTGateway) authHeader() (http.Header, error) {
	token, err := g.creds.Token()
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if g.creds.APIKey != "" {
		header.Set("X-API-Key", g.creds.APIKey)
	}
	return header, nil
}

func (g *RESTGateway) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	fullURL := g.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	header, err := g.authHeader()
	if err != nil {
		return err
	}
	req.Header = header
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "volumebot")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Body: raw}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
