package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/classify"
	"github.com/policyscout/discovery-cli/internal/discovery"
	"github.com/policyscout/discovery-cli/internal/feature"
	"github.com/policyscout/discovery-cli/internal/fetch"
	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/neural"
	"github.com/policyscout/discovery-cli/internal/store"
	anthropicpkg "github.com/policyscout/discovery-cli/pkg/anthropic"
	"github.com/policyscout/discovery-cli/pkg/search"
)

// discoveryEnv holds the initialized store, scorer, and engine shared by
// the discover, worker, and serve commands.
type discoveryEnv struct {
	Store  store.Store
	Scorer *neural.Scorer // nil when the persisted model could not load
	Engine *discovery.Engine
}

// Close releases resources held by the environment.
func (de *discoveryEnv) Close() {
	if de.Store != nil {
		_ = de.Store.Close()
	}
}

// initDiscovery validates config for mode, opens the store, and wires the
// fetch chain, strategies, scorer, and classifier into an Engine. events is
// an optional progress channel. Callers should defer env.Close().
func initDiscovery(ctx context.Context, mode string, events chan<- model.PhaseEvent) (*discoveryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	// Fetch chain: lightweight HTTP first, render fallback when configured.
	light := fetch.NewClient(fetch.Options{
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RetryBudget: time.Duration(cfg.Fetch.RetryBudgetSecs) * time.Second,
		MaxBody:     cfg.Fetch.MaxBodyBytes,
		UserAgents:  cfg.Fetch.UserAgents,
	})
	fetchers := []fetch.Fetcher{light}
	if cfg.Fetch.RenderBaseURL != "" {
		fetchers = append(fetchers, fetch.NewRenderClient(fetch.RenderOptions{
			BaseURL: cfg.Fetch.RenderBaseURL,
			Key:     cfg.Fetch.RenderKey,
			MaxBody: cfg.Fetch.MaxBodyBytes,
		}))
		zap.L().Info("render fallback enabled")
	}
	chain := fetch.NewChain(cfg.Fetch.MinContentBytes, fetchers...)

	searchClient := search.NewClient(
		search.WithBaseURL(cfg.Search.BaseURL),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second}),
	)

	strategies := []discovery.Strategy{
		discovery.NewDirectStrategy(chain),
		discovery.NewSearchStrategy(searchClient),
		discovery.NewCrawlStrategy(chain, cfg.Discovery.CrawlMaxPages, cfg.Discovery.CrawlRatePerSec),
	}

	scoring, err := feature.LoadConfig(cfg.Discovery.ScoringConfig)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load scoring config")
	}

	// The scorer is optional: discovery degrades to pure heuristics when the
	// persisted model cannot load.
	var linkScorer discovery.LinkScorer
	scorer, err := neural.NewScorer(ctx, st, cfg.Discovery.ModelKey)
	if err != nil {
		zap.L().Warn("link scorer unavailable, ranking on heuristics only", zap.Error(err))
		scorer = nil
	} else {
		linkScorer = scorer
	}

	var classifier *classify.Refiner
	if cfg.Anthropic.Enabled && cfg.Anthropic.Key != "" {
		analyzer := classify.NewLLMAnalyzer(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
		classifier = classify.NewRefiner(analyzer, time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)
		zap.L().Info("llm tie-breaker enabled", zap.String("model", cfg.Anthropic.Model))
	}

	engine := discovery.New(
		discovery.Config{
			Budget:        time.Duration(cfg.Discovery.BudgetSecs) * time.Second,
			WorkerTimeout: time.Duration(cfg.Discovery.WorkerTimeoutSecs) * time.Second,
			MaxVerify:     cfg.Discovery.MaxVerify,
			MaxResults:    cfg.Discovery.MaxResults,
			CacheTTL:      time.Duration(cfg.Cache.TTLHours) * time.Hour,
		},
		strategies,
		chain,
		linkScorer,
		classifier,
		scoring,
		st,
		events,
	)

	return &discoveryEnv{Store: st, Scorer: scorer, Engine: engine}, nil
}
