package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	toolcore "github.com/harunnryd/kabu/internal/tool"
)

const (
	defaultStockBaseURL = "https://www.alphavantage.co/query"
	maxDailyPoints      = 5
	maxSearchMatches    = 10
)

func init() {
	toolcore.RegisterBuiltin("stock_quote", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		timeout := options.StockTimeout
		if timeout <= 0 {
			timeout = toolcore.DefaultBuiltinHTTPTimeout
		}

		baseURL := strings.TrimSpace(options.StockBaseURL)
		if baseURL == "" {
			baseURL = defaultStockBaseURL
		}

		return &StockQuoteTool{
			Client:  &http.Client{Timeout: timeout},
			BaseURL: baseURL,
			APIKey:  options.StockAPIKey,
		}, nil
	})
}

// StockQuoteTool retrieves market data from the Alpha Vantage API:
// real-time quotes, company fundamentals, daily price history, and ticker
// symbol search.
type StockQuoteTool struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func (t *StockQuoteTool) Name() string { return "stock_quote" }

func (t *StockQuoteTool) Description() string {
	return "Get stock market data including real-time quotes, company fundamentals, and historical prices. Use query_type 'quote' for current price, 'overview' for company details, 'daily' for price history, or 'search' to find ticker symbols by company name."
}

func (t *StockQuoteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"symbol": map[string]interface{}{
				"type":        "string",
				"description": "Stock ticker symbol (e.g., 'IBM', 'AAPL', 'GOOGL'); for 'search', company name or keywords",
			},
			"query_type": map[string]interface{}{
				"type":        "string",
				"description": "Type of data to fetch: 'quote' (real-time price), 'overview' (company info), 'daily' (price history), 'search' (find ticker symbols)",
				"enum":        []interface{}{"quote", "overview", "daily", "search"},
				"default":     "quote",
			},
		},
		"required": []string{"symbol"},
	}
}

func (t *StockQuoteTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Symbol    string `json:"symbol"`
		QueryType string `json:"query_type"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(args.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	queryType := strings.TrimSpace(args.QueryType)
	if queryType == "" {
		queryType = "quote"
	}

	switch queryType {
	case "quote":
		return t.fetchQuote(ctx, symbol)
	case "overview":
		return t.fetchOverview(ctx, symbol)
	case "daily":
		return t.fetchDaily(ctx, symbol)
	case "search":
		return t.searchSymbol(ctx, strings.TrimSpace(args.Symbol))
	default:
		return nil, fmt.Errorf("unknown query_type %q", queryType)
	}
}

func (t *StockQuoteTool) fetchQuote(ctx context.Context, symbol string) (json.RawMessage, error) {
	data, err := t.request(ctx, map[string]string{
		"function": "GLOBAL_QUOTE",
		"symbol":   symbol,
	})
	if err != nil {
		return nil, err
	}

	quote, ok := data["Global Quote"].(map[string]interface{})
	if !ok || len(quote) == 0 {
		return nil, fmt.Errorf("no quote data for %q: %s", symbol, apiNote(data))
	}

	return json.Marshal(map[string]interface{}{
		"symbol":             symbol,
		"price":              quote["05. price"],
		"change":             quote["09. change"],
		"change_percent":     quote["10. change percent"],
		"open":               quote["02. open"],
		"high":               quote["03. high"],
		"low":                quote["04. low"],
		"volume":             quote["06. volume"],
		"previous_close":     quote["08. previous close"],
		"latest_trading_day": quote["07. latest trading day"],
	})
}

func (t *StockQuoteTool) fetchOverview(ctx context.Context, symbol string) (json.RawMessage, error) {
	data, err := t.request(ctx, map[string]string{
		"function": "OVERVIEW",
		"symbol":   symbol,
	})
	if err != nil {
		return nil, err
	}

	if _, ok := data["Symbol"]; !ok {
		return nil, fmt.Errorf("no overview data for %q: %s", symbol, apiNote(data))
	}

	description, _ := data["Description"].(string)
	if len(description) > 200 {
		description = description[:200] + "..."
	}

	return json.Marshal(map[string]interface{}{
		"symbol":         symbol,
		"name":           data["Name"],
		"sector":         data["Sector"],
		"industry":       data["Industry"],
		"market_cap":     data["MarketCapitalization"],
		"pe_ratio":       data["PERatio"],
		"eps":            data["EPS"],
		"week52_high":    data["52WeekHigh"],
		"week52_low":     data["52WeekLow"],
		"ma_50_day":      data["50DayMovingAverage"],
		"ma_200_day":     data["200DayMovingAverage"],
		"dividend_yield": data["DividendYield"],
		"exchange":       data["Exchange"],
		"country":        data["Country"],
		"description":    description,
	})
}

func (t *StockQuoteTool) fetchDaily(ctx context.Context, symbol string) (json.RawMessage, error) {
	data, err := t.request(ctx, map[string]string{
		"function":   "TIME_SERIES_DAILY",
		"symbol":     symbol,
		"outputsize": "compact",
	})
	if err != nil {
		return nil, err
	}

	series, ok := data["Time Series (Daily)"].(map[string]interface{})
	if !ok || len(series) == 0 {
		return nil, fmt.Errorf("no daily data for %q: %s", symbol, apiNote(data))
	}

	dates := make([]string, 0, len(series))
	for date := range series {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > maxDailyPoints {
		dates = dates[:maxDailyPoints]
	}

	days := make([]map[string]interface{}, 0, len(dates))
	for _, date := range dates {
		day, ok := series[date].(map[string]interface{})
		if !ok {
			continue
		}
		days = append(days, map[string]interface{}{
			"date":   date,
			"open":   day["1. open"],
			"high":   day["2. high"],
			"low":    day["3. low"],
			"close":  day["4. close"],
			"volume": day["5. volume"],
		})
	}

	return json.Marshal(map[string]interface{}{
		"symbol":            symbol,
		"recent_days":       days,
		"total_data_points": len(series),
	})
}

func (t *StockQuoteTool) searchSymbol(ctx context.Context, keywords string) (json.RawMessage, error) {
	data, err := t.request(ctx, map[string]string{
		"function": "SYMBOL_SEARCH",
		"keywords": keywords,
	})
	if err != nil {
		return nil, err
	}

	rawMatches, ok := data["bestMatches"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("symbol search for %q failed: %s", keywords, apiNote(data))
	}
	if len(rawMatches) > maxSearchMatches {
		rawMatches = rawMatches[:maxSearchMatches]
	}

	matches := make([]map[string]interface{}, 0, len(rawMatches))
	for _, raw := range rawMatches {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		matches = append(matches, map[string]interface{}{
			"symbol":      m["1. symbol"],
			"name":        m["2. name"],
			"type":        m["3. type"],
			"region":      m["4. region"],
			"match_score": m["9. matchScore"],
		})
	}

	return json.Marshal(map[string]interface{}{
		"keywords": keywords,
		"matches":  matches,
	})
}

func (t *StockQuoteTool) request(ctx context.Context, params map[string]string) (map[string]interface{}, error) {
	baseURL := strings.TrimSpace(t.BaseURL)
	if baseURL == "" {
		baseURL = defaultStockBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stock endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid stock endpoint")
	}

	q := parsed.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	q.Set("apikey", t.APIKey)
	parsed.RawQuery = q.Encode()

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: toolcore.DefaultBuiltinHTTPTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("stock request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode stock response: %w", err)
	}
	return payload, nil
}

// apiNote extracts Alpha Vantage's human-readable failure hint, if any.
// The API returns 200 with a "Note" on rate limits and an "Error Message"
// on bad symbols.
func apiNote(data map[string]interface{}) string {
	if note, ok := data["Note"].(string); ok && note != "" {
		return note
	}
	if msg, ok := data["Error Message"].(string); ok && msg != "" {
		return msg
	}
	return "unknown error"
}
