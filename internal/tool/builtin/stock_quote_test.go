package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockQuoteExecute_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		_, _ = io.WriteString(w, `{"Global Quote":{"01. symbol":"IBM","02. open":"170.00","03. high":"172.50","04. low":"169.80","05. price":"171.25","06. volume":"3512345","07. latest trading day":"2026-03-13","08. previous close":"169.90","09. change":"1.35","10. change percent":"0.7946%"}}`)
	}))
	defer server.Close()

	tool := &StockQuoteTool{
		Client:  server.Client(),
		BaseURL: server.URL,
		APIKey:  "test-key",
	}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"symbol":"ibm"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "IBM", resp["symbol"])
	assert.Equal(t, "171.25", resp["price"])
	assert.Equal(t, "0.7946%", resp["change_percent"])
	assert.Equal(t, "2026-03-13", resp["latest_trading_day"])
}

func TestStockQuoteExecute_Overview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OVERVIEW", r.URL.Query().Get("function"))
		_, _ = io.WriteString(w, `{"Symbol":"IBM","Name":"International Business Machines","Sector":"TECHNOLOGY","Industry":"COMPUTER SERVICES","MarketCapitalization":"155000000000","PERatio":"18.5","EPS":"9.1","52WeekHigh":"190.0","52WeekLow":"130.0","50DayMovingAverage":"175.2","200DayMovingAverage":"160.8","DividendYield":"0.039","Exchange":"NYSE","Country":"USA","Description":"IBM is a global technology company."}`)
	}))
	defer server.Close()

	tool := &StockQuoteTool{Client: server.Client(), BaseURL: server.URL}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"symbol":"IBM","query_type":"overview"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "International Business Machines", resp["name"])
	assert.Equal(t, "TECHNOLOGY", resp["sector"])
	assert.Equal(t, "18.5", resp["pe_ratio"])
	assert.Equal(t, "IBM is a global technology company.", resp["description"])
}

func TestStockQuoteExecute_Daily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		assert.Equal(t, "compact", r.URL.Query().Get("outputsize"))
		_, _ = io.WriteString(w, `{"Time Series (Daily)":{
			"2026-03-09":{"1. open":"168.0","2. high":"169.0","3. low":"167.0","4. close":"168.5","5. volume":"1000"},
			"2026-03-10":{"1. open":"168.5","2. high":"170.0","3. low":"168.0","4. close":"169.8","5. volume":"1100"},
			"2026-03-11":{"1. open":"169.8","2. high":"171.0","3. low":"169.0","4. close":"170.2","5. volume":"1200"},
			"2026-03-12":{"1. open":"170.2","2. high":"171.5","3. low":"169.9","4. close":"169.9","5. volume":"1300"},
			"2026-03-13":{"1. open":"169.9","2. high":"172.5","3. low":"169.8","4. close":"171.25","5. volume":"1400"},
			"2026-03-06":{"1. open":"167.0","2. high":"168.2","3. low":"166.5","4. close":"168.0","5. volume":"900"}}}`)
	}))
	defer server.Close()

	tool := &StockQuoteTool{Client: server.Client(), BaseURL: server.URL}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"symbol":"IBM","query_type":"daily"}`))
	require.NoError(t, err)

	var resp struct {
		Symbol          string                   `json:"symbol"`
		RecentDays      []map[string]interface{} `json:"recent_days"`
		TotalDataPoints int                      `json:"total_data_points"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))

	assert.Equal(t, 6, resp.TotalDataPoints)
	require.Len(t, resp.RecentDays, maxDailyPoints)
	assert.Equal(t, "2026-03-13", resp.RecentDays[0]["date"])
	assert.Equal(t, "2026-03-09", resp.RecentDays[4]["date"])
	assert.Equal(t, "171.25", resp.RecentDays[0]["close"])
}

func TestStockQuoteExecute_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		assert.Equal(t, "international business", r.URL.Query().Get("keywords"))
		_, _ = io.WriteString(w, `{"bestMatches":[{"1. symbol":"IBM","2. name":"International Business Machines Corp","3. type":"Equity","4. region":"United States","9. matchScore":"0.9000"}]}`)
	}))
	defer server.Close()

	tool := &StockQuoteTool{Client: server.Client(), BaseURL: server.URL}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"symbol":"international business","query_type":"search"}`))
	require.NoError(t, err)

	var resp struct {
		Keywords string                   `json:"keywords"`
		Matches  []map[string]interface{} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "international business", resp.Keywords)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "IBM", resp.Matches[0]["symbol"])
	assert.Equal(t, "0.9000", resp.Matches[0]["match_score"])
}

func TestStockQuoteExecute_RateLimitNote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`)
	}))
	defer server.Close()

	tool := &StockQuoteTool{Client: server.Client(), BaseURL: server.URL}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"symbol":"IBM"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestStockQuoteExecute_InvalidInput(t *testing.T) {
	tool := &StockQuoteTool{}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"symbol":""}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol is required")

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"symbol":"IBM","query_type":"minute"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown query_type")
}
