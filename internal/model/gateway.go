package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/kabu/internal/config"
	kabuErrors "github.com/harunnryd/kabu/internal/errors"
	"github.com/harunnryd/kabu/internal/logger"
	"github.com/harunnryd/kabu/internal/model/contract"
	anthropicProvider "github.com/harunnryd/kabu/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/kabu/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/kabu/internal/model/providers/openai"
)

// binding ties a mode to a concrete backend, resolved once at construction.
type binding struct {
	provider Provider
	model    string
}

// DefaultGateway implements Gateway over the configured mode bindings.
type DefaultGateway struct {
	bindings       map[Mode]binding
	requestTimeout time.Duration
}

// NewGateway resolves the reasoning and inference model names against the
// registry and instantiates one provider per distinct backend.
func NewGateway(cfg config.ModelsConfig) (*DefaultGateway, error) {
	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultModelRequestTimeout)
	if err != nil {
		return nil, kabuErrors.Wrap(err, "models.request_timeout")
	}

	gw := &DefaultGateway{
		bindings:       make(map[Mode]binding, 2),
		requestTimeout: timeout,
	}

	providers := make(map[string]Provider)
	for mode, name := range map[Mode]string{
		ModeReasoning: cfg.Reasoning,
		ModeInference: cfg.Inference,
	} {
		entry, ok := findRegistryEntry(cfg.Registry, name)
		if !ok {
			return nil, kabuErrors.NotFound(fmt.Sprintf("model %q for %s mode not in models.registry", name, mode))
		}

		key := entry.Provider + "|" + entry.BaseURL + "|" + entry.APIKey
		provider, exists := providers[key]
		if !exists {
			provider, err = newProvider(entry)
			if err != nil {
				return nil, err
			}
			providers[key] = provider
		}

		gw.bindings[mode] = binding{provider: provider, model: entry.Name}
	}

	return gw, nil
}

func findRegistryEntry(registry []config.ModelRegistry, name string) (config.ModelRegistry, bool) {
	name = strings.TrimSpace(name)
	for _, entry := range registry {
		if entry.Name == name {
			return entry, true
		}
	}
	return config.ModelRegistry{}, false
}

func newProvider(entry config.ModelRegistry) (Provider, error) {
	switch entry.Provider {
	case "openai":
		return openaiProvider.New(entry.APIKey, entry.BaseURL), nil
	case "anthropic":
		return anthropicProvider.New(entry.APIKey), nil
	case "gemini":
		return geminiProvider.New(entry.APIKey)
	default:
		return nil, kabuErrors.InvalidInput(fmt.Sprintf("unknown provider %q for model %q", entry.Provider, entry.Name))
	}
}

// Infer runs one completion in the given mode. Results carrying both text
// and tool calls classify as tool calls; the text rides along as the
// assistant's commentary.
func (g *DefaultGateway) Infer(ctx context.Context, mode Mode, messages []contract.Message, tools []contract.ToolDef, toolChoice string) (*Result, error) {
	b, ok := g.bindings[mode]
	if !ok {
		return nil, kabuErrors.NotFound(fmt.Sprintf("no backend bound for %s mode", mode))
	}

	runID := logger.GetRunID(ctx)
	slog.Debug("Gateway inference", "mode", mode, "model", b.model, "provider", b.provider.Name(),
		"messages", len(messages), "tools", len(tools), "run_id", runID)

	callCtx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := b.provider.Generate(callCtx, contract.CompletionRequest{
		Model:      b.model,
		Messages:   messages,
		Tools:      tools,
		ToolChoice: toolChoice,
	})
	if err != nil {
		slog.Warn("Gateway call failed", "mode", mode, "model", b.model, "error", err, "run_id", runID)
		return nil, kabuErrors.MapModelError(err)
	}

	slog.Debug("Gateway call completed", "mode", mode, "model", b.model,
		"duration", time.Since(start), "tool_calls", len(resp.ToolCalls), "run_id", runID)

	return &Result{
		Text:      resp.Content,
		ToolCalls: resp.ToolCalls,
	}, nil
}
