package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/harunnryd/kabu/internal/pathutil"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Models  ModelsConfig  `koanf:"models"`
	Agent   AgentConfig   `koanf:"agent"`
	Tools   ToolsConfig   `koanf:"tools"`
	Session SessionConfig `koanf:"session"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

type ModelsConfig struct {
	// Reasoning and Inference name entries in Registry. Reasoning drives
	// the think step, Inference drives tool selection and compaction.
	Reasoning      string          `koanf:"reasoning"`
	Inference      string          `koanf:"inference"`
	RequestTimeout string          `koanf:"request_timeout"`
	Registry       []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type AgentConfig struct {
	MaxIterations           int    `koanf:"max_iterations"`
	CompactAfterLoops       int    `koanf:"compact_after_loops"`
	CompactContextThreshold int    `koanf:"compact_context_threshold"`
	RetryMax                int    `koanf:"retry_max"`
	RetryBackoff            string `koanf:"retry_backoff"`
	Verbose                 bool   `koanf:"verbose"`
}

type ToolsConfig struct {
	Stock StockToolConfig `koanf:"stock"`
	News  NewsToolConfig  `koanf:"news"`
}

type StockToolConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Timeout string `koanf:"timeout"`
}

type NewsToolConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Timeout string `koanf:"timeout"`
}

type SessionConfig struct {
	Dir     string `koanf:"dir"`
	Persist bool   `koanf:"persist"`
}

const (
	DefaultServerLogLevel = "info"

	DefaultModelReasoning      = "gpt-4o"
	DefaultModelInference      = "gpt-4o-mini"
	DefaultModelRequestTimeout = "60s"
	DefaultOpenAIBaseURL       = "https://api.openai.com/v1"

	DefaultAgentMaxIterations           = 10
	DefaultAgentCompactAfterLoops       = 3
	DefaultAgentCompactContextThreshold = 50000
	DefaultAgentRetryMax                = 2
	DefaultAgentRetryBackoff            = "500ms"

	DefaultStockToolBaseURL = "https://www.alphavantage.co/query"
	DefaultStockToolTimeout = "10s"
	DefaultNewsToolBaseURL  = "https://api.marketaux.com/v1"
	DefaultNewsToolTimeout  = "10s"

	DefaultSessionPersist = true
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.log_level":       DefaultServerLogLevel,
		"models.reasoning":       DefaultModelReasoning,
		"models.inference":       DefaultModelInference,
		"models.request_timeout": DefaultModelRequestTimeout,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelReasoning, Provider: "openai"},
			{Name: DefaultModelInference, Provider: "openai"},
		},
		"agent.max_iterations":            DefaultAgentMaxIterations,
		"agent.compact_after_loops":       DefaultAgentCompactAfterLoops,
		"agent.compact_context_threshold": DefaultAgentCompactContextThreshold,
		"agent.retry_max":                 DefaultAgentRetryMax,
		"agent.retry_backoff":             DefaultAgentRetryBackoff,
		"agent.verbose":                   false,
		"tools.stock.base_url":            DefaultStockToolBaseURL,
		"tools.stock.api_key":             "",
		"tools.stock.timeout":             DefaultStockToolTimeout,
		"tools.news.base_url":             DefaultNewsToolBaseURL,
		"tools.news.api_key":              "",
		"tools.news.timeout":              DefaultNewsToolTimeout,
		"session.dir":                     "",
		"session.persist":                 DefaultSessionPersist,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		expanded, err := pathutil.Expand(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(expanded), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".kabu", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables. Keys like agent.max_iterations contain
	// underscores themselves, so env names are matched against the known
	// config keys instead of blindly mapping every underscore to a dot:
	// KABU_AGENT_MAX_ITERATIONS lands on agent.max_iterations.
	envKeys := make(map[string]string, len(defaults))
	for key := range defaults {
		envKeys[strings.ReplaceAll(key, ".", "_")] = key
	}
	k.Load(env.Provider("KABU_", ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "KABU_"))
		if key, ok := envKeys[name]; ok {
			return key
		}
		return strings.Replace(name, "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	// Post-Process: Inject standard Env Vars if missing
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "gemini" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" && cfg.Tools.Stock.APIKey == "" {
		cfg.Tools.Stock.APIKey = key
	}
	if key := os.Getenv("MARKETAUX_API_KEY"); key != "" && cfg.Tools.News.APIKey == "" {
		cfg.Tools.News.APIKey = key
	}

	if cfg.Session.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Session.Dir = filepath.Join(home, ".kabu", "sessions")
		}
	} else if expanded, err := pathutil.Expand(cfg.Session.Dir); err == nil {
		cfg.Session.Dir = expanded
	}

	return &cfg, nil
}
