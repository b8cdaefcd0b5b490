package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGatewayClient("test-key", srv.URL, "DU12345", 0)
}

func TestConnect(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/session", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]bool{"authenticated": true})
	})

	require.NoError(t, g.Connect(context.Background()))
	assert.True(t, g.IsConnected())
}

func TestConnectUnauthenticated(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"authenticated": false})
	})

	require.Error(t, g.Connect(context.Background()))
	assert.False(t, g.IsConnected())
}

func TestFetchStrikes(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/contracts/strikes", r.URL.Path)
		assert.Equal(t, "SPX", r.URL.Query().Get("symbol"))
		assert.Equal(t, "CBOE", r.URL.Query().Get("exchange"))
		assert.Equal(t, "IND", r.URL.Query().Get("sec_type"))
		_ = json.NewEncoder(w).Encode(map[string][]int{"strikes": {5890, 5895, 5900}})
	})

	strikes, err := g.FetchStrikes(context.Background(), "SPX", "CBOE", "IND")
	require.NoError(t, err)
	assert.Equal(t, []int{5890, 5895, 5900}, strikes)
}

func TestGetLatestPremium(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/marketdata/option", r.URL.Path)
		assert.Equal(t, "C", r.URL.Query().Get("right"))
		assert.Equal(t, "5900", r.URL.Query().Get("strike"))
		_ = json.NewEncoder(w).Encode(Quote{Bid: 9.8, Ask: 10.2, Mid: 10.0, Last: 10.1})
	})

	q, err := g.GetLatestPremium(context.Background(), "SPX", "20260829", 5900, "C")
	require.NoError(t, err)
	assert.Equal(t, 10.2, q.Ask)
	assert.Equal(t, 10.0, q.Mid)
}

func TestQualifyContractEmptyResult(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]any{"contracts": {}})
	})

	ref, err := g.QualifyContract(context.Background(), ContractSpec{Symbol: "SPX"})
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestPlaceMarketOrder(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts/DU12345/orders", r.URL.Path)

		var req orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, OrderSideSell, req.Side)
		assert.Equal(t, "MKT", req.OrderType)
		assert.Equal(t, 1, req.Quantity)

		_ = json.NewEncoder(w).Encode(orderResponse{OrderID: "o-77", Status: "filled", FillPrice: 10.25})
	})

	id, fill, err := g.PlaceMarketOrder(context.Background(),
		ContractSpec{Symbol: "SPX", Strike: 5900, Right: "C"}, 1, OrderSideSell)
	require.NoError(t, err)
	assert.Equal(t, "o-77", id)
	assert.Equal(t, 10.25, fill)
}

func TestAPIErrorSurfacesStatus(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient margin", http.StatusUnprocessableEntity)
	})

	_, _, err := g.PlaceMarketOrder(context.Background(), ContractSpec{}, 1, OrderSideSell)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Body, "insufficient margin")
}

func TestGetOpenOrders(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(map[string][]OrderView{"orders": {
			{ID: "o-1", Status: "open", SecType: "OPT", Right: "C"},
			{ID: "o-2", Status: "open", SecType: "OPT", Right: "P"},
		}})
	})

	orders, err := g.GetOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "C", orders[0].Right)
}

func TestCancelPositionPaths(t *testing.T) {
	var gotRight string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/DU12345/positions/close", r.URL.Path)
		var req closeLegRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotRight = req.Right
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, g.CancelCallPosition(context.Background(), 6000, 5900))
	assert.Equal(t, "C", gotRight)
	require.NoError(t, g.CancelPutPosition(context.Background(), 5800, 5900))
	assert.Equal(t, "P", gotRight)
}
