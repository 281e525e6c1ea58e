package model

import (
	"context"

	"github.com/harunnryd/kabu/internal/model/contract"
)

// Mode selects which backend profile handles a call. Reasoning gets the
// full conversation and the capable model; inference gets minimal context
// and the cheap model (tool selection, compaction).
type Mode string

const (
	ModeReasoning Mode = "reasoning"
	ModeInference Mode = "inference"
)

// ResultKind classifies a gateway result. Tool calls take precedence over
// text, so a response carrying both is ToolCallsRequested.
type ResultKind string

const (
	KindReasoning          ResultKind = "reasoning"
	KindToolCallsRequested ResultKind = "tool_calls_requested"
	KindFinalAnswer        ResultKind = "final_answer"
)

// Result is the gateway's discriminated union: free text, a batch of tool
// call requests, or a final answer.
type Result struct {
	Text      string
	ToolCalls []*contract.ToolCall
}

func (r *Result) Kind() ResultKind {
	switch {
	case len(r.ToolCalls) > 0:
		return KindToolCallsRequested
	case r.Text != "":
		return KindFinalAnswer
	default:
		return KindReasoning
	}
}

func (r *Result) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Gateway is the loop's only door to language models. It never retries on
// its own; transport failures surface wrapped in errors.ErrModelUnavailable
// and the caller decides.
type Gateway interface {
	Infer(ctx context.Context, mode Mode, messages []contract.Message, tools []contract.ToolDef, toolChoice string) (*Result, error)
}

// Provider is one model backend. Adapters live under providers/.
type Provider interface {
	Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	Name() string
}
