package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ALPHAVANTAGE_API_KEY", "")
	t.Setenv("MARKETAUX_API_KEY", "")

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != DefaultServerLogLevel {
		t.Errorf("Expected default log level %s, got %s", DefaultServerLogLevel, cfg.Server.LogLevel)
	}
	if cfg.Models.Reasoning != DefaultModelReasoning {
		t.Errorf("Expected default reasoning model %s, got %s", DefaultModelReasoning, cfg.Models.Reasoning)
	}
	if cfg.Models.Inference != DefaultModelInference {
		t.Errorf("Expected default inference model %s, got %s", DefaultModelInference, cfg.Models.Inference)
	}
	if cfg.Agent.MaxIterations != DefaultAgentMaxIterations {
		t.Errorf("Expected default max iterations %d, got %d", DefaultAgentMaxIterations, cfg.Agent.MaxIterations)
	}
	if cfg.Agent.CompactAfterLoops != DefaultAgentCompactAfterLoops {
		t.Errorf("Expected default compact loops %d, got %d", DefaultAgentCompactAfterLoops, cfg.Agent.CompactAfterLoops)
	}
	if cfg.Agent.CompactContextThreshold != DefaultAgentCompactContextThreshold {
		t.Errorf("Expected default compact threshold %d, got %d", DefaultAgentCompactContextThreshold, cfg.Agent.CompactContextThreshold)
	}
	if cfg.Tools.Stock.BaseURL != DefaultStockToolBaseURL {
		t.Errorf("Expected default stock base url %s, got %s", DefaultStockToolBaseURL, cfg.Tools.Stock.BaseURL)
	}
	if cfg.Tools.News.BaseURL != DefaultNewsToolBaseURL {
		t.Errorf("Expected default news base url %s, got %s", DefaultNewsToolBaseURL, cfg.Tools.News.BaseURL)
	}
	if len(cfg.Models.Registry) != 2 {
		t.Fatalf("Expected 2 default registry entries, got %d", len(cfg.Models.Registry))
	}
	if cfg.Session.Dir == "" {
		t.Error("Expected session dir to resolve under HOME")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KABU_AGENT_MAX_ITERATIONS", "4")
	t.Setenv("KABU_SERVER_LOG_LEVEL", "debug")
	t.Setenv("KABU_TOOLS_STOCK_BASE_URL", "http://localhost:9999/query")
	t.Setenv("KABU_MODELS_INFERENCE", "gpt-5-mini")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Agent.MaxIterations != 4 {
		t.Errorf("Expected env override max iterations 4, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Expected env override log level debug, got %s", cfg.Server.LogLevel)
	}
	if cfg.Tools.Stock.BaseURL != "http://localhost:9999/query" {
		t.Errorf("Expected env override stock base url, got %s", cfg.Tools.Stock.BaseURL)
	}
	if cfg.Models.Inference != "gpt-5-mini" {
		t.Errorf("Expected env override inference model, got %s", cfg.Models.Inference)
	}
}

func TestLoadAPIKeyInjection(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ALPHAVANTAGE_API_KEY", "av-test")
	t.Setenv("MARKETAUX_API_KEY", "mx-test")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	for _, m := range cfg.Models.Registry {
		if m.Provider == "openai" && m.APIKey != "sk-test" {
			t.Errorf("Expected injected openai key, got %q for %s", m.APIKey, m.Name)
		}
	}
	if cfg.Tools.Stock.APIKey != "av-test" {
		t.Errorf("Expected injected alphavantage key, got %q", cfg.Tools.Stock.APIKey)
	}
	if cfg.Tools.News.APIKey != "mx-test" {
		t.Errorf("Expected injected marketaux key, got %q", cfg.Tools.News.APIKey)
	}
}

func TestLoadGlobalConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")

	dir := filepath.Join(home, ".kabu")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	body := "agent:\n  max_iterations: 7\nmodels:\n  reasoning: o3\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Agent.MaxIterations != 7 {
		t.Errorf("Expected file override max iterations 7, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Models.Reasoning != "o3" {
		t.Errorf("Expected file override reasoning model o3, got %s", cfg.Models.Reasoning)
	}
	// Untouched keys keep defaults
	if cfg.Models.Inference != DefaultModelInference {
		t.Errorf("Expected default inference model, got %s", cfg.Models.Inference)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "10s")
	if err != nil || d.Seconds() != 10 {
		t.Errorf("Expected fallback 10s, got %v err %v", d, err)
	}
	d, err = DurationOrDefault("250ms", "10s")
	if err != nil || d.Milliseconds() != 250 {
		t.Errorf("Expected 250ms, got %v err %v", d, err)
	}
	if _, err := DurationOrDefault("bogus", "10s"); err == nil {
		t.Error("Expected parse error for bogus duration")
	}
}
