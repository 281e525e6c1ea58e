package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/kabu/internal/model/contract"
)

func newTestCatalog(t *testing.T, tools ...Tool) *Catalog {
	t.Helper()
	registry := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	return NewCatalog(registry)
}

func TestCatalogInvoke(t *testing.T) {
	echo := &stubTool{
		name: "echo",
		parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
			"required": []string{"text"},
		},
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var args struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return nil, err
			}
			return json.Marshal(map[string]string{"echo": args.Text})
		},
	}
	catalog := newTestCatalog(t, echo)

	result := catalog.Invoke(context.Background(), contract.ToolCall{
		ID:    "call-1",
		Name:  "echo",
		Input: `{"text":"hello"}`,
	})

	assert.Equal(t, "call-1", result.ToolCallID)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"echo":"hello"}`, result.Output)
}

func TestCatalogInvokeUnknownTool(t *testing.T) {
	catalog := newTestCatalog(t, &stubTool{name: "echo"})

	result := catalog.Invoke(context.Background(), contract.ToolCall{
		ID:    "call-2",
		Name:  "nope",
		Input: `{}`,
	})

	assert.True(t, result.IsError)
	assert.Equal(t, "call-2", result.ToolCallID)
	assert.Contains(t, result.Output, `unknown tool "nope"`)
	assert.Contains(t, result.Output, "echo")
}

func TestCatalogInvokeInvalidArguments(t *testing.T) {
	strict := &stubTool{
		name: "strict",
		parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"count": map[string]interface{}{"type": "number"},
			},
			"required": []string{"count"},
		},
	}
	catalog := newTestCatalog(t, strict)

	for _, input := range []string{`{}`, `{"count":"three"}`, `{"count":1,"extra":true}`, `{broken`} {
		result := catalog.Invoke(context.Background(), contract.ToolCall{
			ID:    "call-3",
			Name:  "strict",
			Input: input,
		})
		assert.True(t, result.IsError, "input %q should produce an error result", input)
		assert.Contains(t, result.Output, "invalid arguments for strict")
	}
}

func TestCatalogInvokeAppliesDefaults(t *testing.T) {
	var seen json.RawMessage
	defaulted := &stubTool{
		name: "defaulted",
		parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"limit": map[string]interface{}{"type": "number", "default": float64(5)},
			},
		},
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			seen = input
			return json.RawMessage(`{}`), nil
		},
	}
	catalog := newTestCatalog(t, defaulted)

	result := catalog.Invoke(context.Background(), contract.ToolCall{
		ID:    "call-4",
		Name:  "defaulted",
		Input: `{}`,
	})

	require.False(t, result.IsError, result.Output)
	assert.JSONEq(t, `{"limit":5}`, string(seen))
}

func TestCatalogInvokeExecutionFailure(t *testing.T) {
	failing := &stubTool{
		name: "failing",
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return nil, fmt.Errorf("upstream unavailable")
		},
	}
	catalog := newTestCatalog(t, failing)

	result := catalog.Invoke(context.Background(), contract.ToolCall{
		ID:    "call-5",
		Name:  "failing",
		Input: `{}`,
	})

	assert.True(t, result.IsError)
	assert.Contains(t, result.Output, "tool failing failed")
	assert.Contains(t, result.Output, "upstream unavailable")
}

func TestCatalogInvokeRecoversPanic(t *testing.T) {
	panicky := &stubTool{
		name: "panicky",
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			panic("boom")
		},
	}
	catalog := newTestCatalog(t, panicky)

	result := catalog.Invoke(context.Background(), contract.ToolCall{
		ID:    "call-6",
		Name:  "panicky",
		Input: `{}`,
	})

	assert.True(t, result.IsError)
	assert.Equal(t, "call-6", result.ToolCallID)
	assert.Contains(t, result.Output, "panicked")
	assert.Contains(t, result.Output, "boom")
}
