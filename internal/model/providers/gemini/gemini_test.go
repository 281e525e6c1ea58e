package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/kabu/internal/model/contract"
)

func TestConvertContentsToolCallRoundTrip(t *testing.T) {
	contents := convertContents([]contract.Message{
		{Role: contract.RoleUser, Content: "price of AAPL?"},
		{Role: contract.RoleAssistant, ToolCalls: []*contract.ToolCall{
			{ID: "call_9f2", Name: "stock_quote", Input: `{"symbol":"AAPL"}`},
		}},
		{Role: contract.RoleTool, ToolCallID: "call_9f2", Content: `{"price":198.2}`},
	})

	require.Len(t, contents, 3)

	assistant := contents[1]
	assert.Equal(t, "model", assistant.Role)
	require.Len(t, assistant.Parts, 1)
	call := assistant.Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "call_9f2", call.ID)
	assert.Equal(t, "stock_quote", call.Name)
	assert.Equal(t, map[string]any{"symbol": "AAPL"}, call.Args)

	// The response names the function, not the call ID, even when the
	// provider-supplied ID differs from the function name.
	result := contents[2]
	assert.Equal(t, "function", result.Role)
	require.Len(t, result.Parts, 1)
	fr := result.Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "call_9f2", fr.ID)
	assert.Equal(t, "stock_quote", fr.Name)
	assert.Equal(t, map[string]any{"price": 198.2}, fr.Response)
}

func TestConvertContentsAssistantTextAndToolCall(t *testing.T) {
	contents := convertContents([]contract.Message{
		{Role: contract.RoleAssistant, Content: "Checking the quote.", ToolCalls: []*contract.ToolCall{
			{ID: "call_a", Name: "stock_quote", Input: `{"symbol":"MSFT"}`},
		}},
	})

	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "Checking the quote.", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].FunctionCall)
}

func TestConvertContentsOrphanToolResultFallsBackToID(t *testing.T) {
	contents := convertContents([]contract.Message{
		{Role: contract.RoleTool, ToolCallID: "call_lost", Content: `not json`},
	})

	require.Len(t, contents, 1)
	fr := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "call_lost", fr.Name)
	assert.Equal(t, map[string]any{"output": "not json"}, fr.Response)
}
