package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTimeTool(t *testing.T) *MarketTimeTool {
	t.Helper()
	fixed := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	return &MarketTimeTool{now: func() time.Time { return fixed }}
}

func TestMarketTimeExecute_Formats(t *testing.T) {
	cases := []struct {
		name  string
		input string
		key   string
		want  interface{}
	}{
		{"default datetime", `{}`, "datetime", "2026-03-14 09:30:00"},
		{"date only", `{"format":"date"}`, "date", "2026-03-14"},
		{"time only", `{"format":"time"}`, "time", "09:30:00"},
		{"unix timestamp", `{"format":"timestamp"}`, "timestamp", float64(1773480600)},
		{"iso", `{"format":"iso"}`, "iso", "2026-03-14T09:30:00Z"},
	}

	tool := fixedTimeTool(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := tool.Execute(context.Background(), json.RawMessage(tc.input))
			require.NoError(t, err)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &resp))
			assert.Equal(t, tc.want, resp[tc.key])
		})
	}
}

func TestMarketTimeExecute_UTCOffset(t *testing.T) {
	tool := fixedTimeTool(t)

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"format":"datetime","utc_offset":"+07:00"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "2026-03-14 16:30:00", resp["datetime"])
	assert.Equal(t, "+07:00", resp["utc_offset"])

	raw, err = tool.Execute(context.Background(), json.RawMessage(`{"format":"time","utc_offset":"-05:00"}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "04:30:00", resp["time"])
}

func TestMarketTimeExecute_InvalidInput(t *testing.T) {
	tool := fixedTimeTool(t)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"format":"epoch"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	for _, offset := range []string{"07:00", "+7:00", "+25:00", "+00:75", "+0000"} {
		input, marshalErr := json.Marshal(map[string]string{"utc_offset": offset})
		require.NoError(t, marshalErr)
		_, err = tool.Execute(context.Background(), input)
		require.Error(t, err, "offset %q should be rejected", offset)
	}
}
