package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polycopy/internal/adapters/polymarket"
	"github.com/alejandrodnm/polycopy/internal/domain"
)

func newTestClient(dataSrv, gammaSrv *httptest.Server) *polymarket.Client {
	dataURL := ""
	gammaURL := ""
	if dataSrv != nil {
		dataURL = dataSrv.URL
	}
	if gammaSrv != nil {
		gammaURL = gammaSrv.URL
	}
	return polymarket.NewClient(dataURL, gammaURL, polymarket.WithRetryWait(time.Millisecond))
}

func jsonHandler(t *testing.T, path, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

const positionsFixture = `[
	{
		"proxyWallet": "0x56687bf447db6ffa42ffe2204a05edaa20f55839",
		"asset": "123",
		"conditionId": "0xABC1",
		"title": "Will BTC close above 100k?",
		"outcome": "Yes",
		"outcomeIndex": 0,
		"size": 10000,
		"avgPrice": 0.40,
		"curPrice": 0.52,
		"cashPnl": 1200
	},
	{
		"conditionId": "0xdef2",
		"title": "Fed cuts in June?",
		"outcome": "No",
		"outcomeIndex": 1,
		"size": "250.5",
		"avgPrice": "0.61",
		"curPrice": "0.58",
		"cashPnl": "-7.5"
	}
]`

func TestFetchPositions_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0x56687bf447db6ffa42ffe2204a05edaa20f55839", r.URL.Query().Get("user"))
		assert.Equal(t, "0", r.URL.Query().Get("sizeThreshold"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(positionsFixture))
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	entries, err := client.FetchPositions(context.Background(), "0x56687bf447db6ffa42ffe2204a05edaa20f55839")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "0xabc1", e.MarketID)
	assert.Equal(t, domain.SideA, e.Side)
	assert.Equal(t, "Yes", e.Outcome)
	assert.InDelta(t, 10000, e.Shares, 1e-9)
	assert.InDelta(t, 0.40, e.EntryPrice, 1e-9)
	assert.InDelta(t, 0.52, e.CurrentPrice, 1e-9)
	assert.InDelta(t, 1200, e.UnrealizedPnL, 1e-9)

	// numeric strings are accepted too
	assert.Equal(t, domain.SideB, entries[1].Side)
	assert.InDelta(t, 250.5, entries[1].Shares, 1e-9)
	assert.InDelta(t, -7.5, entries[1].UnrealizedPnL, 1e-9)
}

func TestFetchPositions_EmptyList(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/positions", `[]`))
	defer srv.Close()

	entries, err := newTestClient(srv, nil).FetchPositions(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchPositions_UnknownOutcomeIndexLeavesSideEmpty(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/positions",
		`[{"conditionId":"0x1","outcomeIndex":3,"size":1,"avgPrice":0.5,"curPrice":0.5}]`))
	defer srv.Close()

	entries, err := newTestClient(srv, nil).FetchPositions(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Side.Valid())
}

func TestFetchPositions_NonNumericFieldIsError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/positions",
		`[{"conditionId":"0x1","outcomeIndex":0,"size":"lots","avgPrice":0.5,"curPrice":0.5}]`))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPositions(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestFetchPositions_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/positions", `{"error":"oops"`))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPositions(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestFetchPositions_ServerErrorRetriedThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPositions(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error 502")
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchPositions_RecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(positionsFixture))
	}))
	defer srv.Close()

	entries, err := newTestClient(srv, nil).FetchPositions(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPositions_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid user"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPositions(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client error 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchReputation_ScalesAccuracy(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/users/0xabc",
		`{"username":"ilovecircle","accuracy":0.74,"trades":1347,"profit_loss":"2200000.5","volume":9000000}`))
	defer srv.Close()

	rep, err := newTestClient(nil, srv).FetchReputation(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.InDelta(t, 74.0, rep.AccuracyPct, 1e-9)
	assert.Equal(t, 1347, rep.TotalTrades)
	assert.InDelta(t, 2200000.5, rep.NetProfit, 1e-6)
}

func TestFetchReputation_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(nil, srv).FetchReputation(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestFetchQuote_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "0xabc1", r.URL.Query().Get("condition_ids"))
		w.Write([]byte(`[{"conditionId":"0xABC1","question":"Will BTC close above 100k?","volume":"512345.7","liquidity":"20000","bestAsk":0.53,"active":true}]`))
	}))
	defer srv.Close()

	q, err := newTestClient(nil, srv).FetchQuote(context.Background(), "0xabc1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc1", q.MarketID)
	assert.InDelta(t, 512345.7, q.Volume, 1e-6)
	assert.InDelta(t, 20000, q.Liquidity, 1e-9)
	assert.InDelta(t, 0.53, q.BestAsk, 1e-9)
	assert.False(t, q.FetchedAt.IsZero())
}

func TestFetchQuote_NotFound(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/markets", `[]`))
	defer srv.Close()

	_, err := newTestClient(nil, srv).FetchQuote(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, polymarket.ErrMarketNotFound)
}
