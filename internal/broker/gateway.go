package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// APIError represents a gateway error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Status, e.Body)
}

const defaultRequestTimeout = 15 * time.Second

// GatewayClient talks to the brokerage gateway's REST API. All trading calls
// run against one account; the engine never sees HTTP details.
type GatewayClient struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	accountID string
	connected atomic.Bool
}

// NewGatewayClient creates a gateway client for the given endpoint and account.
func NewGatewayClient(apiKey, baseURL, accountID string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &GatewayClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		accountID: accountID,
	}
}

// WithHTTPClient swaps the HTTP client, for tests.
func (g *GatewayClient) WithHTTPClient(client *http.Client) *GatewayClient {
	g.client = client
	return g
}

var _ Broker = (*GatewayClient)(nil)

// request performs one JSON round trip against the gateway.
func (g *GatewayClient) request(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	endpoint := g.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Connect opens the trading session with the gateway.
func (g *GatewayClient) Connect(ctx context.Context) error {
	var out struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := g.request(ctx, http.MethodPost, "/v1/session", nil, map[string]string{"account_id": g.accountID}, &out); err != nil {
		g.connected.Store(false)
		return err
	}
	if !out.Authenticated {
		g.connected.Store(false)
		return fmt.Errorf("gateway session not authenticated for account %s", g.accountID)
	}
	g.connected.Store(true)
	return nil
}

// IsConnected reports whether the last Connect succeeded.
func (g *GatewayClient) IsConnected() bool {
	return g.connected.Load()
}

// FetchStrikes returns the listed strikes for the instrument.
func (g *GatewayClient) FetchStrikes(ctx context.Context, instrument, exchange, secType string) ([]int, error) {
	params := url.Values{}
	params.Set("symbol", instrument)
	params.Set("exchange", exchange)
	params.Set("sec_type", secType)

	var out struct {
		Strikes []int `json:"strikes"`
	}
	if err := g.request(ctx, http.MethodGet, "/v1/contracts/strikes", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Strikes, nil
}

// CurrentPrice returns the last traded price of the underlying.
func (g *GatewayClient) CurrentPrice(ctx context.Context, instrument, exchange string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", instrument)
	params.Set("exchange", exchange)

	var out struct {
		Last float64 `json:"last"`
	}
	if err := g.request(ctx, http.MethodGet, "/v1/marketdata/price", params, nil, &out); err != nil {
		return 0, err
	}
	return out.Last, nil
}

// GetLatestPremium returns the current premium quote for one option.
func (g *GatewayClient) GetLatestPremium(ctx context.Context, symbol, expiry string, strike float64, right string) (*Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiry", expiry)
	params.Set("strike", fmt.Sprintf("%g", strike))
	params.Set("right", right)

	var out Quote
	if err := g.request(ctx, http.MethodGet, "/v1/marketdata/option", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QualifyContract resolves a contract spec to a gateway contract ID. An empty
// result set maps to (nil, nil); the caller decides how fatal that is.
func (g *GatewayClient) QualifyContract(ctx context.Context, spec ContractSpec) (*ContractRef, error) {
	var out struct {
		Contracts []struct {
			ConID  string  `json:"conid"`
			Symbol string  `json:"symbol"`
			Expiry string  `json:"expiry"`
			Strike float64 `json:"strike"`
			Right  string  `json:"right"`
		} `json:"contracts"`
	}
	if err := g.request(ctx, http.MethodPost, "/v1/contracts/qualify", nil, spec, &out); err != nil {
		return nil, err
	}
	if len(out.Contracts) == 0 {
		return nil, nil
	}
	c := out.Contracts[0]
	return &ContractRef{ID: c.ConID, Symbol: c.Symbol, Expiry: c.Expiry, Strike: c.Strike, Right: c.Right}, nil
}

type orderRequest struct {
	Contract  ContractSpec `json:"contract"`
	Side      OrderSide    `json:"side"`
	Quantity  int          `json:"quantity"`
	OrderType string       `json:"order_type"`
	StopLevel float64      `json:"stop_level,omitempty"`
}

type orderResponse struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	FillPrice float64 `json:"fill_price"`
}

// PlaceMarketOrder submits a market order and returns the order ID and the
// reported fill price.
func (g *GatewayClient) PlaceMarketOrder(ctx context.Context, spec ContractSpec, qty int, side OrderSide) (string, float64, error) {
	req := orderRequest{Contract: spec, Side: side, Quantity: qty, OrderType: "MKT"}
	var out orderResponse
	path := fmt.Sprintf("/v1/accounts/%s/orders", g.accountID)
	if err := g.request(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return "", 0, err
	}
	return out.OrderID, out.FillPrice, nil
}

// PlaceStopOrder submits a stop order at the given level.
func (g *GatewayClient) PlaceStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64) (string, error) {
	req := orderRequest{Contract: spec, Side: side, Quantity: qty, OrderType: "STP", StopLevel: stopLevel}
	var out orderResponse
	path := fmt.Sprintf("/v1/accounts/%s/orders", g.accountID)
	if err := g.request(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

// ModifyStopOrder moves an existing stop order to a new level.
func (g *GatewayClient) ModifyStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64, orderID string) error {
	req := orderRequest{Contract: spec, Side: side, Quantity: qty, OrderType: "STP", StopLevel: stopLevel}
	path := fmt.Sprintf("/v1/accounts/%s/orders/%s", g.accountID, orderID)
	return g.request(ctx, http.MethodPut, path, nil, req, nil)
}

// GetOpenOrders lists the account's working orders.
func (g *GatewayClient) GetOpenOrders(ctx context.Context) ([]OrderView, error) {
	params := url.Values{}
	params.Set("status", "open")

	var out struct {
		Orders []OrderView `json:"orders"`
	}
	path := fmt.Sprintf("/v1/accounts/%s/orders", g.accountID)
	if err := g.request(ctx, http.MethodGet, path, params, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// CloseAllOpenOrders cancels every working order on the account.
func (g *GatewayClient) CloseAllOpenOrders(ctx context.Context) error {
	path := fmt.Sprintf("/v1/accounts/%s/orders", g.accountID)
	return g.request(ctx, http.MethodDelete, path, nil, nil, nil)
}

// CancelHedges liquidates all long hedge positions on the account.
func (g *GatewayClient) CancelHedges(ctx context.Context) error {
	path := fmt.Sprintf("/v1/accounts/%s/positions/hedges/close", g.accountID)
	return g.request(ctx, http.MethodPost, path, nil, nil, nil)
}

type closeLegRequest struct {
	Right          string  `json:"right"`
	HedgeStrike    float64 `json:"hedge_strike"`
	PositionStrike float64 `json:"position_strike"`
}

// CancelCallPosition liquidates the short call and its hedge.
func (g *GatewayClient) CancelCallPosition(ctx context.Context, hedgeStrike, positionStrike float64) error {
	return g.closeLeg(ctx, "C", hedgeStrike, positionStrike)
}

// CancelPutPosition liquidates the short put and its hedge.
func (g *GatewayClient) CancelPutPosition(ctx context.Context, hedgeStrike, positionStrike float64) error {
	return g.closeLeg(ctx, "P", hedgeStrike, positionStrike)
}

func (g *GatewayClient) closeLeg(ctx context.Context, right string, hedgeStrike, positionStrike float64) error {
	req := closeLegRequest{Right: right, HedgeStrike: hedgeStrike, PositionStrike: positionStrike}
	path := fmt.Sprintf("/v1/accounts/%s/positions/close", g.accountID)
	return g.request(ctx, http.MethodPost, path, nil, req, nil)
}
