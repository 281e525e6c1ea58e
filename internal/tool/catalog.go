package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/harunnryd/kabu/internal/logger"
	"github.com/harunnryd/kabu/internal/model/contract"
)

// Result is the outcome of one tool invocation. Errors are data: they are
// recorded in history for the model to react to, never raised to the loop.
type Result struct {
	ToolCallID string
	Output     string
	IsError    bool
}

// Catalog handles the full invocation lifecycle for registered tools:
// lookup -> default fill -> schema validation -> execution. It is safe to
// call Invoke concurrently across different requests.
type Catalog struct {
	registry *Registry
}

func NewCatalog(registry *Registry) *Catalog {
	return &Catalog{registry: registry}
}

func (c *Catalog) Descriptors() []contract.ToolDef {
	if c == nil || c.registry == nil {
		return nil
	}
	return c.registry.Descriptors()
}

func (c *Catalog) Names() []string {
	if c == nil || c.registry == nil {
		return nil
	}
	return c.registry.Names()
}

// Invoke never returns a Go error: every failure mode (unknown tool, bad
// arguments, execution failure, panicking implementation) becomes an error
// Result so a single bad call cannot crash the loop.
func (c *Catalog) Invoke(ctx context.Context, call contract.ToolCall) (result Result) {
	result = Result{ToolCallID: call.ID}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", call.Name, "panic", r, "stack", string(debug.Stack()))
			result.Output = fmt.Sprintf("tool %s panicked: %v", call.Name, r)
			result.IsError = true
		}
	}()

	t, ok := c.registry.Get(call.Name)
	if !ok {
		result.Output = fmt.Sprintf("unknown tool %q; available tools: %v", call.Name, c.registry.Names())
		result.IsError = true
		return result
	}
	name := NormalizeToolName(t.Name())

	input, err := ApplyDefaults(t.Parameters(), json.RawMessage(call.Input))
	if err != nil {
		result.Output = fmt.Sprintf("invalid arguments for %s: %v", name, err)
		result.IsError = true
		return result
	}

	if err := ValidateInput(t.Parameters(), input); err != nil {
		slog.Warn("Tool input validation failed", "tool", name, "error", err)
		result.Output = fmt.Sprintf("invalid arguments for %s: %v", name, err)
		result.IsError = true
		return result
	}

	start := time.Now()
	runID := logger.GetRunID(ctx)
	slog.Info("Executing tool", "tool", name, "call_id", call.ID, "run_id", runID)

	output, err := t.Execute(ctx, input)

	duration := time.Since(start)
	if err != nil {
		slog.Warn("Tool execution failed", "tool", name, "call_id", call.ID, "error", err, "duration", duration, "run_id", runID)
		result.Output = fmt.Sprintf("tool %s failed: %v", name, err)
		result.IsError = true
		return result
	}

	slog.Info("Tool execution success", "tool", name, "call_id", call.ID, "duration", duration, "run_id", runID)
	result.Output = string(output)
	return result
}
