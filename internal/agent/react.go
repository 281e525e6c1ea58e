package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/kabu/internal/config"
	kabuErrors "github.com/harunnryd/kabu/internal/errors"
	"github.com/harunnryd/kabu/internal/logger"
	"github.com/harunnryd/kabu/internal/model"
	"github.com/harunnryd/kabu/internal/model/contract"
	"github.com/harunnryd/kabu/internal/tool"
)

// phase names for logs and traces.
const (
	phaseThinking  = "THINKING"
	phaseActing    = "ACTING"
	phaseObserving = "OBSERVING"
)

const observationPreview = 200

// Agent runs the ReAct loop: think on the reasoning model, pick tools on the
// inference model, execute the batch concurrently, observe, repeat. Run
// always produces a Response; the only error it returns is the caller's own
// context cancellation.
type Agent struct {
	gateway      model.Gateway
	catalog      *tool.Catalog
	conversation *Conversation
	summarizer   *Summarizer

	maxIterations           int
	compactAfterLoops       int
	compactContextThreshold int
	retryMax                int
	retryBackoff            time.Duration
	verbose                 bool
}

func New(gateway model.Gateway, catalog *tool.Catalog, cfg config.AgentConfig) *Agent {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = config.DefaultAgentMaxIterations
	}

	backoff, err := config.DurationOrDefault(cfg.RetryBackoff, config.DefaultAgentRetryBackoff)
	if err != nil {
		slog.Warn("Invalid retry backoff, using default", "value", cfg.RetryBackoff, "error", err)
		backoff, _ = config.DurationOrDefault(config.DefaultAgentRetryBackoff, config.DefaultAgentRetryBackoff)
	}

	return &Agent{
		gateway:                 gateway,
		catalog:                 catalog,
		conversation:            NewConversation(reactSystemPrompt),
		summarizer:              NewSummarizer(gateway),
		maxIterations:           maxIterations,
		compactAfterLoops:       cfg.CompactAfterLoops,
		compactContextThreshold: cfg.CompactContextThreshold,
		retryMax:                cfg.RetryMax,
		retryBackoff:            backoff,
		verbose:                 cfg.Verbose,
	}
}

// Conversation exposes the live history, mainly for persistence.
func (a *Agent) Conversation() *Conversation {
	return a.conversation
}

// Run answers one user query. The returned Response is always usable: the
// iteration cap and model-retry exhaustion both degrade to a best-effort
// answer with Incomplete set. A non-nil error means the context was
// cancelled; the partial Response still accompanies it.
func (a *Agent) Run(ctx context.Context, query string) (*Response, error) {
	runID := ulid.Make().String()
	ctx = logger.WithRunID(ctx, runID)

	a.conversation.BeginSegment(query)

	run := &runState{response: &Response{}}
	slog.Info("Run started", "run_id", runID, "query_runes", len(query))

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		run.response.Iterations = iteration

		if err := ctx.Err(); err != nil {
			return a.finishCancelled(run, err)
		}

		a.maybeCompact(ctx)

		// THINK: full history, reasoning model, tools visible but not callable.
		thought, err := a.think(ctx, run)
		if err != nil {
			if ctx.Err() != nil {
				return a.finishCancelled(run, ctx.Err())
			}
			return a.finishDegraded(run, "model unavailable while reasoning", err), nil
		}
		run.lastThought = thought

		if err := ctx.Err(); err != nil {
			return a.finishCancelled(run, err)
		}

		// DECIDE/ACT: current segment only, inference model, tools on.
		decision, err := a.decide(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return a.finishCancelled(run, ctx.Err())
			}
			return a.finishDegraded(run, "model unavailable while selecting tools", err), nil
		}

		switch decision.Kind() {
		case model.KindToolCallsRequested:
			a.actAndObserve(ctx, run, decision.ToolCalls)
			a.conversation.RecordLoop()

		case model.KindFinalAnswer:
			// A final answer ends the run without an observe phase, so it
			// does not count as a completed loop.
			a.conversation.Append(contract.Message{Role: contract.RoleAssistant, Content: decision.Text})
			run.response.FinalAnswer = decision.Text
			run.response.ToolsUsed = run.sortedTools()
			slog.Info("Run complete", "run_id", runID, "iterations", iteration, "tools_used", run.response.ToolsUsed)
			return run.response, nil

		default:
			// Neither text nor tool calls; think again.
			run.trace(phaseActing, "no action taken, re-entering reasoning")
			slog.Debug("Empty action result", "run_id", runID, "iteration", iteration)
		}
	}

	// Iteration cap: degrade to the best answer we have instead of failing.
	slog.Warn("Iteration cap reached", "run_id", runID, "max_iterations", a.maxIterations)
	return a.finishDegraded(run, fmt.Sprintf("no final answer within %d iterations", a.maxIterations), nil), nil
}

// runState accumulates per-run bookkeeping across iterations.
type runState struct {
	response    *Response
	lastThought string
	toolsUsed   map[string]bool
}

func (r *runState) trace(phase, detail string) {
	r.response.Trace = append(r.response.Trace, fmt.Sprintf("[%s] %s", phase, detail))
}

func (r *runState) recordTool(name string) {
	if r.toolsUsed == nil {
		r.toolsUsed = map[string]bool{}
	}
	r.toolsUsed[name] = true
}

func (r *runState) sortedTools() []string {
	names := make([]string, 0, len(r.toolsUsed))
	for name := range r.toolsUsed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Agent) think(ctx context.Context, run *runState) (string, error) {
	messages := append(a.conversation.Messages(), contract.Message{
		Role:    contract.RoleUser,
		Content: reasoningNudge,
	})

	result, err := a.infer(ctx, model.ModeReasoning, messages, a.catalog.Descriptors(), contract.ToolChoiceNone)
	if err != nil {
		return "", err
	}

	thought := strings.TrimSpace(result.Text)
	a.conversation.Append(contract.Message{Role: contract.RoleAssistant, Content: "Thought: " + thought})
	run.trace(phaseThinking, thought)
	if a.verbose {
		slog.Info("Thought", "run_id", logger.GetRunID(ctx), "text", thought)
	}
	return thought, nil
}

func (a *Agent) decide(ctx context.Context) (*model.Result, error) {
	return a.infer(ctx, model.ModeInference, a.conversation.CurrentSegment(), a.catalog.Descriptors(), contract.ToolChoiceAuto)
}

// actAndObserve dispatches the batch concurrently and records the assistant
// tool-call message plus one tool-role result message per request, in request
// order. The batch always joins before the conversation advances, so a
// cancelled context still leaves consistent history.
func (a *Agent) actAndObserve(ctx context.Context, run *runState, calls []*contract.ToolCall) {
	ensureCallIDs(calls)

	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
		run.recordTool(call.Name)
	}
	run.trace(phaseActing, "tools requested: "+strings.Join(names, ", "))
	slog.Info("Dispatching tool batch", "run_id", logger.GetRunID(ctx), "batch_size", len(calls), "tools", names)

	results := a.dispatch(ctx, calls)

	a.conversation.Append(contract.Message{Role: contract.RoleAssistant, ToolCalls: calls})
	previews := make([]string, 0, len(results))
	for i, result := range results {
		a.conversation.Append(contract.Message{
			Role:       contract.RoleTool,
			ToolCallID: result.ToolCallID,
			Content:    fmt.Sprintf("%s (with arguments: %s)", result.Output, calls[i].Input),
		})
		previews = append(previews, truncate(result.Output, observationPreview))
	}
	run.trace(phaseObserving, strings.Join(previews, " | "))
}

// dispatch runs the batch in parallel, one goroutine per distinct
// (name, canonical-arguments) pair. Duplicate requests execute once; each
// request still receives its own result under its own call ID.
func (a *Agent) dispatch(ctx context.Context, calls []*contract.ToolCall) []tool.Result {
	type callKey struct {
		name string
		args string
	}

	distinct := make([]*contract.ToolCall, 0, len(calls))
	index := make(map[callKey]int, len(calls))
	keys := make([]callKey, len(calls))
	for i, call := range calls {
		key := callKey{name: call.Name, args: canonicalArgs(call.Input)}
		keys[i] = key
		if _, seen := index[key]; !seen {
			index[key] = len(distinct)
			distinct = append(distinct, call)
		}
	}

	executed := make([]tool.Result, len(distinct))
	var wg sync.WaitGroup
	for i, call := range distinct {
		wg.Add(1)
		go func(i int, call contract.ToolCall) {
			defer wg.Done()
			executed[i] = a.catalog.Invoke(ctx, call)
		}(i, *call)
	}
	wg.Wait()

	results := make([]tool.Result, len(calls))
	for i, call := range calls {
		result := executed[index[keys[i]]]
		result.ToolCallID = call.ID
		results[i] = result
	}
	return results
}

// infer wraps the gateway call with bounded retry on retryable failures.
// Backoff grows linearly with the attempt; cancellation cuts it short.
func (a *Agent) infer(ctx context.Context, mode model.Mode, messages []contract.Message, tools []contract.ToolDef, toolChoice string) (*model.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retryMax; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying model call",
				"mode", mode,
				"attempt", attempt,
				"max", a.retryMax,
				"error", lastErr,
				"run_id", logger.GetRunID(ctx))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.retryBackoff * time.Duration(attempt)):
			}
		}

		result, err := a.gateway.Infer(ctx, mode, messages, tools, toolChoice)
		if err == nil {
			return result, nil
		}
		if !kabuErrors.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// maybeCompact checks the two triggers (loops since last compaction, history
// size) and compacts the oldest eligible segment. Failure is logged and
// skipped; the next iteration tries again.
func (a *Agent) maybeCompact(ctx context.Context) {
	byLoops := a.compactAfterLoops > 0 && a.conversation.LoopsSinceCompaction() >= a.compactAfterLoops
	bySize := a.compactContextThreshold > 0 && a.conversation.Size() >= a.compactContextThreshold
	if !byLoops && !bySize {
		return
	}

	idx, ok := a.conversation.NextCompactable()
	if !ok {
		return
	}

	runID := logger.GetRunID(ctx)
	slog.Info("Compaction triggered",
		"run_id", runID,
		"segment", idx,
		"loops_since_compaction", a.conversation.LoopsSinceCompaction(),
		"size", a.conversation.Size())

	messages, err := a.conversation.SegmentMessages(idx)
	if err != nil {
		slog.Warn("Compaction skipped", "run_id", runID, "error", err)
		return
	}

	summary, toolsUsed, err := a.summarizer.Compact(ctx, messages)
	if err != nil {
		slog.Warn("Compaction failed, continuing with full history", "run_id", runID, "error", err)
		return
	}

	if err := a.conversation.CompactSegment(idx, summary); err != nil {
		slog.Warn("Compaction skipped", "run_id", runID, "error", err)
		return
	}
	a.conversation.ResetCompactionWindow()
	slog.Info("Compaction applied", "run_id", runID, "segment", idx, "tools_in_segment", toolsUsed, "size", a.conversation.Size())
}

func (a *Agent) finishDegraded(run *runState, reason string, cause error) *Response {
	if cause != nil {
		slog.Error("Run degraded", "reason", reason, "error", cause)
	}
	run.response.Incomplete = true
	run.response.ToolsUsed = run.sortedTools()
	if run.lastThought != "" {
		run.response.FinalAnswer = fmt.Sprintf("I could not fully complete the analysis (%s). Based on what I gathered so far: %s", reason, run.lastThought)
	} else {
		run.response.FinalAnswer = fmt.Sprintf("I could not complete the analysis: %s.", reason)
	}
	return run.response
}

func (a *Agent) finishCancelled(run *runState, err error) (*Response, error) {
	run.response.Incomplete = true
	run.response.ToolsUsed = run.sortedTools()
	if run.response.FinalAnswer == "" && run.lastThought != "" {
		run.response.FinalAnswer = "Interrupted. Last thought: " + run.lastThought
	}
	return run.response, err
}

// ensureCallIDs synthesizes IDs for providers that omit them so tool-role
// messages always pair with a call.
func ensureCallIDs(calls []*contract.ToolCall) {
	for _, call := range calls {
		if call.ID == "" {
			call.ID = "call_" + ulid.Make().String()
		}
	}
}

// canonicalArgs normalizes a JSON argument document so key order does not
// defeat duplicate detection. Invalid JSON falls back to the raw string.
func canonicalArgs(input string) string {
	var decoded interface{}
	if err := json.Unmarshal([]byte(input), &decoded); err != nil {
		return input
	}
	normalized, err := json.Marshal(decoded)
	if err != nil {
		return input
	}
	return string(normalized)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
