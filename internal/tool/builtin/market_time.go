package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	toolcore "github.com/harunnryd/kabu/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("market_time", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &MarketTimeTool{now: time.Now}, nil
	})
}

// MarketTimeTool returns the current date and time. Useful for grounding
// "today", "this week" style questions before fetching market data.
type MarketTimeTool struct {
	now func() time.Time
}

func (t *MarketTimeTool) Name() string { return "market_time" }

func (t *MarketTimeTool) Description() string {
	return "Get the current date and time in various formats. Useful for interpreting relative dates before querying market data."
}

func (t *MarketTimeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Output format: 'datetime' (full), 'date' (date only), 'time' (time only), 'timestamp' (unix seconds), 'iso' (RFC 3339)",
				"enum":        []interface{}{"datetime", "date", "time", "timestamp", "iso"},
				"default":     "datetime",
			},
			"utc_offset": map[string]interface{}{
				"type":        "string",
				"description": "UTC offset like +07:00 (optional, defaults to UTC)",
			},
		},
	}
}

func (t *MarketTimeTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	_ = ctx

	var args struct {
		Format    string `json:"format"`
		UTCOffset string `json:"utc_offset"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	now := t.now().UTC()
	offset := strings.TrimSpace(args.UTCOffset)
	if offset != "" {
		seconds, err := parseUTCOffset(offset)
		if err != nil {
			return nil, err
		}
		now = now.Add(time.Duration(seconds) * time.Second)
	} else {
		offset = "+00:00"
	}

	format := strings.TrimSpace(args.Format)
	if format == "" {
		format = "datetime"
	}

	payload := map[string]interface{}{"utc_offset": offset}
	switch format {
	case "datetime":
		payload["datetime"] = now.Format("2006-01-02 15:04:05")
	case "date":
		payload["date"] = now.Format("2006-01-02")
	case "time":
		payload["time"] = now.Format("15:04:05")
	case "timestamp":
		payload["timestamp"] = now.Unix()
	case "iso":
		payload["iso"] = now.Format(time.RFC3339)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}

	return json.Marshal(payload)
}

func parseUTCOffset(offset string) (int, error) {
	if len(offset) != 6 {
		return 0, fmt.Errorf("invalid utc_offset format")
	}
	if offset[0] != '+' && offset[0] != '-' {
		return 0, fmt.Errorf("invalid utc_offset sign")
	}
	if offset[3] != ':' {
		return 0, fmt.Errorf("invalid utc_offset format")
	}
	for _, i := range []int{1, 2, 4, 5} {
		if offset[i] < '0' || offset[i] > '9' {
			return 0, fmt.Errorf("invalid utc_offset format")
		}
	}

	hours := int(offset[1]-'0')*10 + int(offset[2]-'0')
	minutes := int(offset[4]-'0')*10 + int(offset[5]-'0')
	if hours > 23 || minutes > 59 {
		return 0, fmt.Errorf("invalid utc_offset value")
	}

	totalSeconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		totalSeconds = -totalSeconds
	}
	return totalSeconds, nil
}
