package main

import (
	"fmt"
	"log/slog"

	"github.com/harunnryd/kabu/internal/agent"
	"github.com/harunnryd/kabu/internal/config"
	"github.com/harunnryd/kabu/internal/model"
	"github.com/harunnryd/kabu/internal/store"
	"github.com/harunnryd/kabu/internal/tool"
	_ "github.com/harunnryd/kabu/internal/tool/builtin"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive analysis session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		defer c.close()

		return NewREPL(c).Start()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// components wires the gateway, tool catalog, agent, and session store for
// one CLI process.
type components struct {
	cfg     *config.Config
	gateway model.Gateway
	catalog *tool.Catalog
	agent   *agent.Agent
	store   *store.Store
}

func buildComponents(cfg *config.Config) (*components, error) {
	gateway, err := model.NewGateway(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("configure model gateway: %w", err)
	}

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	c := &components{
		cfg:     cfg,
		gateway: gateway,
		catalog: catalog,
		agent:   agent.New(gateway, catalog, cfg.Agent),
	}

	if cfg.Session.Persist {
		sessionStore, err := store.Open(cfg.Session.Dir)
		if err != nil {
			slog.Warn("Session persistence disabled", "error", err)
		} else {
			c.store = sessionStore
		}
	}

	return c, nil
}

func buildCatalog(cfg *config.Config) (*tool.Catalog, error) {
	stockTimeout, err := config.DurationOrDefault(cfg.Tools.Stock.Timeout, config.DefaultStockToolTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools.stock.timeout: %w", err)
	}
	newsTimeout, err := config.DurationOrDefault(cfg.Tools.News.Timeout, config.DefaultNewsToolTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools.news.timeout: %w", err)
	}

	builtins, err := tool.InstantiateBuiltins(tool.BuiltinOptions{
		StockBaseURL: cfg.Tools.Stock.BaseURL,
		StockAPIKey:  cfg.Tools.Stock.APIKey,
		StockTimeout: stockTimeout,
		NewsBaseURL:  cfg.Tools.News.BaseURL,
		NewsAPIKey:   cfg.Tools.News.APIKey,
		NewsTimeout:  newsTimeout,
	})
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return tool.NewCatalog(registry), nil
}

// resetAgent discards the conversation, keeping gateway and catalog.
func (c *components) resetAgent() {
	c.agent = agent.New(c.gateway, c.catalog, c.cfg.Agent)
}

func (c *components) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			slog.Warn("Closing session store", "error", err)
		}
	}
}
