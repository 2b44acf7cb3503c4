package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"option-scanner/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doltHubFixture = `{
	"query_execution_status": "Success",
	"query_execution_message": "",
	"rows": [
		{
			"date": "2023-10-18",
			"act_symbol": "AAPL",
			"expiration": "2023-12-15",
			"strike": "150.00",
			"call_put": "Call",
			"bid": "27.10",
			"ask": "27.90",
			"vol": "0.2500"
		},
		{
			"date": "2023-10-18",
			"act_symbol": "AAPL",
			"expiration": "2023-12-15",
			"strike": "180.00",
			"call_put": "Put",
			"bid": "8.00",
			"ask": "0.00",
			"vol": ""
		},
		{
			"date": "2023-10-18",
			"act_symbol": "AAPL",
			"expiration": "2023-12-15",
			"strike": "not-a-number",
			"call_put": "Call",
			"bid": "1.00",
			"ask": "1.10",
			"vol": "0.30"
		}
	]
}`

func testChainSource(serverURL string) *DoltHubChainSource {
	source := NewDoltHubChainSource()
	source.baseURL = serverURL
	source.maxRetries = 1
	return source
}

func TestDoltHubFetchChain(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doltHubFixture))
	}))
	defer server.Close()

	source := testChainSource(server.URL)
	asOf := time.Date(2023, 10, 18, 0, 0, 0, 0, time.UTC)

	chain, err := source.FetchChain(context.Background(), "AAPL", asOf)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "act_symbol = 'AAPL'")
	assert.Contains(t, gotQuery, "date = '2023-10-18'")

	assert.Equal(t, "AAPL", chain.UnderlyingSymbol)
	require.Len(t, chain.Contracts, 2)
	assert.Equal(t, 1, chain.DroppedRows)

	call := chain.Contracts[0]
	assert.Equal(t, "AAPL20231215C150.00", call.Symbol)
	assert.Equal(t, interfaces.OptionTypeCall, call.OptionType)
	assert.Equal(t, 150.0, call.Strike)
	assert.InDelta(t, 27.50, call.MarketPrice, 1e-9) // mid of bid/ask
	assert.Equal(t, 0.25, call.ImpliedVolatility)
	assert.Equal(t, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), call.Expiration)

	// One-sided quote falls back to the bid; empty vol normalizes to 0
	put := chain.Contracts[1]
	assert.Equal(t, interfaces.OptionTypePut, put.OptionType)
	assert.Equal(t, 8.0, put.MarketPrice)
	assert.Equal(t, 0.0, put.ImpliedVolatility)
}

func TestDoltHubFetchChainMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	source := testChainSource(server.URL)

	_, err := source.FetchChain(context.Background(), "AAPL", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrMalformedData)
}

func TestDoltHubFetchChainQueryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query_execution_status": "Error", "query_execution_message": "table not found", "rows": []}`))
	}))
	defer server.Close()

	source := testChainSource(server.URL)

	_, err := source.FetchChain(context.Background(), "AAPL", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrMalformedData)
	assert.Contains(t, err.Error(), "table not found")
}

func TestDoltHubFetchChainRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"query_execution_status": "Success", "rows": []}`))
	}))
	defer server.Close()

	source := testChainSource(server.URL)

	chain, err := source.FetchChain(context.Background(), "AAPL", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Empty(t, chain.Contracts)
}

func TestDoltHubFetchChainNetworkErrorAfterRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := testChainSource(server.URL)

	_, err := source.FetchChain(context.Background(), "AAPL", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrNetwork)
	assert.Equal(t, 2, attempts) // initial attempt + one retry
}

func TestDoltHubFetchChainClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	source := testChainSource(server.URL)

	_, err := source.FetchChain(context.Background(), "AAPL", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrNetwork)
	assert.Equal(t, 1, attempts)
}
