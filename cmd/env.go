package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/complexity"
	"github.com/sells-group/docrouter/internal/llm"
	"github.com/sells-group/docrouter/internal/processor"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/internal/router"
	"github.com/sells-group/docrouter/internal/store"
	"github.com/sells-group/docrouter/pkg/docintel"
	"github.com/sells-group/docrouter/pkg/mcp"
)

// routerEnv holds the initialized collaborators needed by the route,
// batch and serve commands.
type routerEnv struct {
	Router   *router.Router
	Store    store.Store // may be nil
	Guard    *resilience.Guard
	DocIntel docintel.Client
	MCP      *mcp.SessionClient // may be nil
}

// Close releases resources held by the environment.
func (e *routerEnv) Close() {
	if e.MCP != nil {
		if err := e.MCP.Close(); err != nil {
			zap.L().Warn("close mcp session", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initRouter validates configuration for mode, builds every collaborator
// and, when a store driver is configured, opens and migrates the store.
// Callers should defer env.Close().
func initRouter(ctx context.Context, mode string) (*routerEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	guard := resilience.FromConfig(cfg.Resilience)
	di := newDocIntel()

	llmClient, err := llm.New(cfg, guard)
	if err != nil {
		return nil, err
	}

	analyzer, err := loadAnalyzer()
	if err != nil {
		return nil, err
	}

	var opts []router.Option
	var mc *mcp.SessionClient
	if cfg.MCP.URL != "" {
		mcpOpts := []mcp.Option{mcp.WithClientInfo("docrouter", "1.0.0")}
		if cfg.MCP.Token != "" {
			mcpOpts = append(mcpOpts, mcp.WithHeader("Authorization", "Bearer "+cfg.MCP.Token))
		}
		mc = mcp.NewClient(cfg.MCP.URL, mcpOpts...)
		timeout := time.Duration(cfg.MCP.TimeoutSecs) * time.Second
		opts = append(opts, router.WithMCP(processor.NewMCP(mc, cfg.MCP.Tool, guard, timeout)))
		zap.L().Info("mcp collaborator enabled", zap.String("url", cfg.MCP.URL), zap.String("tool", cfg.MCP.Tool))
	}

	r, err := router.New(
		analyzer,
		processor.NewTraditional(di, cfg.DocIntel.ModelID, guard),
		processor.NewMultiAgent(llmClient, processor.WithMaxTokens(cfg.LLM.MaxTokens)),
		opts...,
	)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	return &routerEnv{Router: r, Store: st, Guard: guard, DocIntel: di, MCP: mc}, nil
}

func newDocIntel() docintel.Client {
	return docintel.NewClient(cfg.DocIntel.Endpoint, cfg.DocIntel.Key,
		docintel.WithAPIVersion(cfg.DocIntel.APIVersion),
		docintel.WithPollInterval(time.Duration(cfg.DocIntel.PollIntervalMs)*time.Millisecond),
		docintel.WithTimeout(time.Duration(cfg.DocIntel.TimeoutSecs)*time.Second),
		docintel.WithRateLimit(cfg.DocIntel.RatePerSec),
	)
}

func loadAnalyzer() (*complexity.Analyzer, error) {
	rules, err := complexity.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}
	return complexity.NewAnalyzer(rules)
}

// initStore opens and migrates the configured store. Returns nil when the
// driver is "none".
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, store.Options{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore opens the store for commands that only read outcomes.
func requireStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	return initStore(ctx)
}
