package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	toolcore "github.com/harunnryd/kabu/internal/tool"
)

const (
	defaultNewsBaseURL = "https://api.marketaux.com/v1"
	defaultNewsLimit   = 5
	maxNewsLimit       = 50
	maxArticleEntities = 3
	trendingSampleSize = 50
)

func init() {
	toolcore.RegisterBuiltin("market_news", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		timeout := options.NewsTimeout
		if timeout <= 0 {
			timeout = toolcore.DefaultBuiltinHTTPTimeout
		}

		baseURL := strings.TrimSpace(options.NewsBaseURL)
		if baseURL == "" {
			baseURL = defaultNewsBaseURL
		}

		return &MarketNewsTool{
			Client:  &http.Client{Timeout: timeout},
			BaseURL: baseURL,
			APIKey:  options.NewsAPIKey,
		}, nil
	})
}

// MarketNewsTool fetches financial news and entity sentiment from the
// Marketaux API. All query types go through the /news/all endpoint; the
// trending and performance modes aggregate entity sentiment client-side.
type MarketNewsTool struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func (t *MarketNewsTool) Name() string { return "market_news" }

func (t *MarketNewsTool) Description() string {
	return "Get financial news and sentiment data. Use query_type 'news' for articles about specific stocks (symbols required), 'performance' for sentiment stats and mention counts per symbol (symbols required), 'trending' for the most-mentioned stocks in recent news, or 'entity_search' to find companies by name or keywords (symbols used as search terms)."
}

func (t *MarketNewsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"symbols": map[string]interface{}{
				"type":        "string",
				"description": "Comma-separated ticker symbols (e.g., 'AAPL,MSFT'); for 'entity_search', company name or keywords instead",
			},
			"query_type": map[string]interface{}{
				"type":        "string",
				"description": "Type of data to fetch: 'news' (articles with sentiment), 'performance' (per-symbol sentiment stats), 'trending' (most-mentioned stocks), 'entity_search' (find companies by keywords)",
				"enum":        []interface{}{"news", "performance", "trending", "entity_search"},
				"default":     "news",
			},
			"sentiment_filter": map[string]interface{}{
				"type":        "string",
				"description": "Restrict news articles by sentiment",
				"enum":        []interface{}{"positive", "negative", "neutral"},
			},
			"language": map[string]interface{}{
				"type":        "string",
				"description": "Language code for articles",
				"default":     "en",
			},
			"limit": map[string]interface{}{
				"type":        "number",
				"description": "Number of results to return (1-50)",
				"default":     float64(defaultNewsLimit),
			},
		},
	}
}

type marketNewsArgs struct {
	Symbols         string  `json:"symbols"`
	QueryType       string  `json:"query_type"`
	SentimentFilter string  `json:"sentiment_filter"`
	Language        string  `json:"language"`
	Limit           float64 `json:"limit"`
}

type newsArticle struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Source      string       `json:"source"`
	PublishedAt string       `json:"published_at"`
	Entities    []newsEntity `json:"entities"`
}

type newsEntity struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Industry       string   `json:"industry"`
	Country        string   `json:"country"`
	Exchange       string   `json:"exchange"`
	SentimentScore *float64 `json:"sentiment_score"`
}

type newsResponse struct {
	Meta struct {
		Found int `json:"found"`
	} `json:"meta"`
	Data  []newsArticle `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *MarketNewsTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args marketNewsArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	queryType := strings.TrimSpace(args.QueryType)
	if queryType == "" {
		queryType = "news"
	}

	limit := int(args.Limit)
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	if limit > maxNewsLimit {
		limit = maxNewsLimit
	}

	language := strings.TrimSpace(args.Language)
	if language == "" {
		language = "en"
	}

	symbols := strings.TrimSpace(args.Symbols)

	switch queryType {
	case "news":
		if symbols == "" {
			return nil, fmt.Errorf("symbols is required for news queries (e.g., 'AAPL,MSFT')")
		}
		return t.fetchNews(ctx, symbols, args.SentimentFilter, language, limit)
	case "entity_search":
		if symbols == "" {
			return nil, fmt.Errorf("symbols is required for entity search; use it as search keywords (e.g., 'Apple')")
		}
		return t.searchEntities(ctx, symbols, limit)
	case "trending":
		return t.fetchTrending(ctx, language, limit)
	case "performance":
		if symbols == "" {
			return nil, fmt.Errorf("symbols is required for performance queries")
		}
		return t.fetchPerformance(ctx, symbols)
	default:
		return nil, fmt.Errorf("unknown query_type %q", queryType)
	}
}

func (t *MarketNewsTool) fetchNews(ctx context.Context, symbols, sentimentFilter, language string, limit int) (json.RawMessage, error) {
	params := map[string]string{
		"symbols":         symbols,
		"language":        language,
		"limit":           strconv.Itoa(limit),
		"filter_entities": "true",
	}
	switch strings.TrimSpace(sentimentFilter) {
	case "positive":
		params["sentiment_gte"] = "0.1"
	case "negative":
		params["sentiment_lte"] = "-0.1"
	case "neutral":
		params["sentiment_gte"] = "0"
		params["sentiment_lte"] = "0"
	case "":
	default:
		return nil, fmt.Errorf("unknown sentiment_filter %q", sentimentFilter)
	}

	resp, err := t.request(ctx, "/news/all", params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no news articles found for symbols: %s", symbols)
	}

	articles := make([]map[string]interface{}, 0, len(resp.Data))
	for _, article := range resp.Data {
		entities := make([]map[string]interface{}, 0, maxArticleEntities)
		for _, entity := range article.Entities {
			if len(entities) == maxArticleEntities {
				break
			}
			entities = append(entities, map[string]interface{}{
				"symbol":    entity.Symbol,
				"name":      entity.Name,
				"sentiment": sentimentLabel(entityScore(entity)),
				"score":     entityScore(entity),
			})
		}

		description := article.Description
		if len(description) > 150 {
			description = description[:150] + "..."
		}

		articles = append(articles, map[string]interface{}{
			"title":        article.Title,
			"published_at": article.PublishedAt,
			"url":          article.URL,
			"source":       article.Source,
			"entities":     entities,
			"snippet":      description,
		})
	}

	return json.Marshal(map[string]interface{}{
		"symbols":     strings.ToUpper(symbols),
		"total_found": resp.Meta.Found,
		"articles":    articles,
	})
}

func (t *MarketNewsTool) searchEntities(ctx context.Context, keywords string, limit int) (json.RawMessage, error) {
	resp, err := t.request(ctx, "/news/all", map[string]string{
		"search":             keywords,
		"limit":              strconv.Itoa(limit),
		"must_have_entities": "true",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no entities found for keywords: %s", keywords)
	}

	seen := map[string]bool{}
	entities := make([]map[string]interface{}, 0, limit)
	for _, article := range resp.Data {
		for _, entity := range article.Entities {
			if entity.Symbol == "" || seen[entity.Symbol] {
				continue
			}
			seen[entity.Symbol] = true
			entities = append(entities, map[string]interface{}{
				"symbol":   entity.Symbol,
				"name":     entity.Name,
				"type":     entity.Type,
				"industry": entity.Industry,
				"country":  entity.Country,
				"exchange": entity.Exchange,
			})
			if len(entities) == limit {
				break
			}
		}
		if len(entities) == limit {
			break
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no entities found for keywords: %s", keywords)
	}

	return json.Marshal(map[string]interface{}{
		"keywords": keywords,
		"entities": entities,
	})
}

func (t *MarketNewsTool) fetchTrending(ctx context.Context, language string, limit int) (json.RawMessage, error) {
	resp, err := t.request(ctx, "/news/all", map[string]string{
		"limit":              strconv.Itoa(trendingSampleSize),
		"must_have_entities": "true",
		"language":           language,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no trending entities found at this time")
	}

	type entityStats struct {
		name     string
		kind     string
		industry string
		mentions int
		scores   []float64
	}
	stats := map[string]*entityStats{}
	order := []string{}
	for _, article := range resp.Data {
		for _, entity := range article.Entities {
			if entity.Symbol == "" {
				continue
			}
			s, ok := stats[entity.Symbol]
			if !ok {
				s = &entityStats{name: entity.Name, kind: entity.Type, industry: entity.Industry}
				stats[entity.Symbol] = s
				order = append(order, entity.Symbol)
			}
			s.mentions++
			if entity.SentimentScore != nil {
				s.scores = append(s.scores, *entity.SentimentScore)
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return stats[order[i]].mentions > stats[order[j]].mentions
	})
	if len(order) > limit {
		order = order[:limit]
	}

	trending := make([]map[string]interface{}, 0, len(order))
	for _, symbol := range order {
		s := stats[symbol]
		avg := average(s.scores)
		trending = append(trending, map[string]interface{}{
			"symbol":        symbol,
			"name":          s.name,
			"type":          s.kind,
			"industry":      s.industry,
			"mentions":      s.mentions,
			"avg_sentiment": avg,
			"sentiment":     sentimentLabel(avg),
		})
	}

	return json.Marshal(map[string]interface{}{
		"articles_analyzed": len(resp.Data),
		"trending":          trending,
	})
}

func (t *MarketNewsTool) fetchPerformance(ctx context.Context, symbols string) (json.RawMessage, error) {
	resp, err := t.request(ctx, "/news/all", map[string]string{
		"symbols":         symbols,
		"limit":           strconv.Itoa(trendingSampleSize),
		"filter_entities": "true",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no performance data found for symbols: %s", symbols)
	}

	type symbolStats struct {
		name     string
		mentions int
		positive int
		negative int
		neutral  int
		scores   []float64
	}
	stats := map[string]*symbolStats{}
	order := []string{}
	for _, article := range resp.Data {
		for _, entity := range article.Entities {
			if entity.Symbol == "" {
				continue
			}
			s, ok := stats[entity.Symbol]
			if !ok {
				s = &symbolStats{name: entity.Name}
				stats[entity.Symbol] = s
				order = append(order, entity.Symbol)
			}
			s.mentions++
			if entity.SentimentScore == nil {
				continue
			}
			score := *entity.SentimentScore
			s.scores = append(s.scores, score)
			switch {
			case score > 0.1:
				s.positive++
			case score < -0.1:
				s.negative++
			default:
				s.neutral++
			}
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no performance data found for symbols: %s", symbols)
	}

	performance := make([]map[string]interface{}, 0, len(order))
	for _, symbol := range order {
		s := stats[symbol]
		performance = append(performance, map[string]interface{}{
			"symbol":            symbol,
			"name":              s.name,
			"total_mentions":    s.mentions,
			"avg_sentiment":     average(s.scores),
			"positive_articles": s.positive,
			"negative_articles": s.negative,
			"neutral_articles":  s.neutral,
		})
	}

	return json.Marshal(map[string]interface{}{
		"symbols":           strings.ToUpper(symbols),
		"articles_analyzed": len(resp.Data),
		"performance":       performance,
	})
}

func (t *MarketNewsTool) request(ctx context.Context, endpoint string, params map[string]string) (*newsResponse, error) {
	baseURL := strings.TrimSpace(t.BaseURL)
	if baseURL == "" {
		baseURL = defaultNewsBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid news endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid news endpoint")
	}

	q := parsed.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	q.Set("api_token", t.APIKey)
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

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}

	var payload newsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}
	if payload.Error != nil && payload.Error.Message != "" {
		return nil, fmt.Errorf("news request failed: %s", payload.Error.Message)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("news request failed: %s", resp.Status)
	}
	return &payload, nil
}

func entityScore(entity newsEntity) float64 {
	if entity.SentimentScore == nil {
		return 0
	}
	return *entity.SentimentScore
}

func sentimentLabel(score float64) string {
	switch {
	case score > 0.1:
		return "positive"
	case score < -0.1:
		return "negative"
	default:
		return "neutral"
	}
}

func average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0.0
	for _, score := range scores {
		total += score
	}
	return total / float64(len(scores))
}
