package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperbroker/broker"
	"paperbroker/engine"
	"paperbroker/market"
	"paperbroker/risk"
)

func newTestServer(t *testing.T) (*httptest.Server, *market.FixedFeed, *risk.Manager) {
	t.Helper()

	feed := market.NewFixedFeed()
	feed.Set("AAPL", 100)

	rm, err := risk.NewManager(risk.Settings{
		MaxDailyLoss:     500,
		RiskPerTrade:     1,
		KillSwitchActive: true,
	})
	require.NoError(t, err)

	eng, err := engine.New(engine.Options{Balance: 100000}, feed, rm, nil)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(log, eng, rm, nil)

	ts := httptest.NewServer(srv.Routes(nil))
	t.Cleanup(ts.Close)
	return ts, feed, rm
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPostOrderMarketBuy(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/orders", map[string]any{
		"symbol":   "aapl",
		"side":     "buy",
		"type":     "market",
		"quantity": 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var order broker.Order
	require.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, broker.StatusFilled, order.Status)
	assert.Equal(t, 100.0, order.FillPrice)
	assert.NotEmpty(t, order.ID)
}

func TestPostOrderValidation(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/orders", map[string]any{
		"symbol":   "AAPL",
		"side":     "hold",
		"type":     "market",
		"quantity": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/orders", map[string]any{
		"symbol": "AAPL",
		"side":   "buy",
		"type":   "market",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostOrderRejectionReturnsOrder(t *testing.T) {
	ts, _, rm := newTestServer(t)

	rm.Trigger()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/orders", map[string]any{
		"symbol":   "AAPL",
		"side":     "buy",
		"type":     "market",
		"quantity": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order broker.Order
	require.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, broker.StatusRejected, order.Status)
	assert.Equal(t, broker.ReasonKillSwitchActive, order.Reason)
}

func TestGetOrderNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelOrder(t *testing.T) {
	ts, _, _ := newTestServer(t)

	// Rest a limit buy below the market so it stays pending.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/orders", map[string]any{
		"symbol":     "AAPL",
		"side":       "buy",
		"type":       "limit",
		"quantity":   5,
		"limitPrice": 90,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var order broker.Order
	require.NoError(t, json.Unmarshal(body, &order))
	require.Equal(t, broker.StatusPending, order.Status)

	resp, body = doJSON(t, http.MethodDelete, ts.URL+"/api/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cr cancelResponse
	require.NoError(t, json.Unmarshal(body, &cr))
	assert.True(t, cr.Cancelled)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAccountAndPositions(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/orders", map[string]any{
		"symbol":   "AAPL",
		"side":     "buy",
		"type":     "market",
		"quantity": 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var acct broker.AccountInfo
	require.NoError(t, json.Unmarshal(body, &acct))
	assert.Equal(t, 99000.0, acct.Balance)
	assert.Equal(t, 100000.0, acct.Equity)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/positions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var positions []broker.Position
	require.NoError(t, json.Unmarshal(body, &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, 10.0, positions[0].Quantity)
}

func TestRiskEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/risk", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap risk.Settings
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 500.0, snap.MaxDailyLoss)

	// Invalid patch leaves the prior settings in place.
	bad := -1.0
	resp, _ = doJSON(t, http.MethodPatch, ts.URL+"/api/risk", risk.Update{MaxDailyLoss: &bad})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = doJSON(t, http.MethodGet, ts.URL+"/api/risk", nil)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 500.0, snap.MaxDailyLoss)

	good := 750.0
	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/risk", risk.Update{MaxDailyLoss: &good})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 750.0, snap.MaxDailyLoss)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/risk/trigger", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.KillSwitchTriggered)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/risk/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.False(t, snap.KillSwitchTriggered)
	assert.Equal(t, 0.0, snap.CurrentDailyLoss)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/risk/toggle", toggleRequest{Active: false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.False(t, snap.KillSwitchActive)
}

func TestWatchlist(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var wl []string

	_, body := doJSON(t, http.MethodGet, ts.URL+"/api/watchlist", nil)
	require.NoError(t, json.Unmarshal(body, &wl))
	assert.Empty(t, wl)

	_, body = doJSON(t, http.MethodPost, ts.URL+"/api/watchlist", watchlistRequest{Symbol: "tsla"})
	require.NoError(t, json.Unmarshal(body, &wl))
	assert.Equal(t, []string{"TSLA"}, wl)

	// Adding the same symbol again is a no-op.
	_, body = doJSON(t, http.MethodPost, ts.URL+"/api/watchlist", watchlistRequest{Symbol: "TSLA"})
	require.NoError(t, json.Unmarshal(body, &wl))
	assert.Equal(t, []string{"TSLA"}, wl)

	_, body = doJSON(t, http.MethodDelete, ts.URL+"/api/watchlist/TSLA", nil)
	require.NoError(t, json.Unmarshal(body, &wl))
	assert.Empty(t, wl)
}
