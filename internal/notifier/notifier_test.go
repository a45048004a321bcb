package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/model"
)

func testNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", zap.NewNop())
	n.APIBase = url
	n.Backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv.URL).Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>hi</b>", got["text"])
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv.URL).SendWithRetry(context.Background(), "x", 3))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).SendWithRetry(context.Background(), "x", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retries exhausted")
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollOnce(t *testing.T) {
	var replies atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			assert.Equal(t, "7", r.URL.Query().Get("offset"))
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":7,"message":{"text":" /positions "}},
				{"update_id":8},
				{"update_id":9,"message":{"text":"/unknown"}}
			]}`)
		case "/botTOKEN/sendMessage":
			replies.Add(1)
		}
	}))
	defer srv.Close()

	var seen []string
	handler := func(_ context.Context, cmd string) string {
		seen = append(seen, cmd)
		if cmd == "/positions" {
			return "none"
		}
		return ""
	}

	n := testNotifier(srv.URL)
	next, err := n.PollOnce(context.Background(), srv.Client(), 7, 0, handler)
	require.NoError(t, err)
	assert.Equal(t, 10, next)
	assert.Equal(t, []string{"/positions", "/unknown"}, seen)
	assert.Equal(t, int32(1), replies.Load())
}

func TestFormatScanSummary(t *testing.T) {
	start := time.Date(2024, 5, 15, 13, 35, 0, 0, time.UTC)
	run := &model.ScanRun{
		ID: "r", Universe: "default", Interval: model.Interval1d,
		StartedAt: start, FinishedAt: start.Add(2 * time.Second),
		Results: []model.ScanResult{
			{Symbol: "AAPL", Status: model.StatusOK},
			{Symbol: "MSFT", Status: model.StatusStale},
			{Symbol: "BAD", Status: model.StatusFailed},
		},
	}
	out := FormatScanSummary(run, []model.Signal{
		{Symbol: "AAPL", Type: model.SignalBuy, Strength: 55},
		{Symbol: "MSFT", Type: model.SignalSell, Strength: 20},
		{Symbol: "KO", Type: model.SignalNeutral},
	})
	assert.Contains(t, out, "ok 1 | stale 1 | failed 1")
	assert.Contains(t, out, "<b>BUY</b>")
	assert.Contains(t, out, "<b>SELL</b>")
	assert.Contains(t, out, "Failed: BAD")
	assert.NotContains(t, out, "KO")
}

func TestFormatWheelDecisions(t *testing.T) {
	c := &model.OptionContract{Symbol: "AAPL240520P00100000", Strike: 100, Bid: 1, Expiration: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)}
	out := FormatWheelDecisions([]model.WheelDecision{
		{Symbol: "AAPL", Action: model.ActionSellPut, From: model.WheelNone, To: model.WheelPutSold, Contract: c, ROI: 73},
		{Symbol: "KO", Action: model.ActionClose, Exit: model.ExitFast, From: model.WheelPutSold, To: model.WheelClosedEarly},
		{Symbol: "MSFT", Action: model.ActionNone, From: model.WheelNone, To: model.WheelNone},
		{Symbol: "AMD", Action: model.ActionHold, From: model.WheelPutSold, To: model.WheelAssigned, Reason: "assigned at 95.00"},
	})
	assert.Contains(t, out, "AAPL sell_put")
	assert.Contains(t, out, "ROI 73.0%")
	assert.Contains(t, out, "KO close (profit_80_within_24h)")
	assert.Contains(t, out, "AMD PUT_SOLD → ASSIGNED")
	assert.Contains(t, out, "1 symbol(s) unchanged")
}

func TestFormatPositionsAndStats(t *testing.T) {
	assert.Contains(t, FormatPositions(nil), "none")

	p := model.NewWheelPosition("AAPL")
	p.State, p.Contract, p.Strike, p.MaxProfit, p.RealizedProfit = model.WheelPutSold, "P100", 100, 2, 1
	assert.Contains(t, FormatPositions([]model.WheelPosition{p}), "AAPL: PUT_SOLD P100 strike 100.00")

	out := FormatCacheStats(cache.ManagerStats{Store: cache.Stats{Entries: 3, BarEntries: 2, ChainEntries: 1, Symbols: 2, SizeBytes: 2048}, Hits: 5, Misses: 2})
	assert.Contains(t, out, "Entries: 3 (bars 2, chains 1) over 2 symbols")
	assert.Contains(t, out, "Size: 2.0 KiB")
	assert.Contains(t, out, "Hits 5 | Misses 2")
}
