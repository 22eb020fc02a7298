package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ppiankov/onesource/internal/answer"
	"github.com/ppiankov/onesource/internal/cache"
	"github.com/ppiankov/onesource/internal/connector"
	"github.com/ppiankov/onesource/internal/llm"
	"github.com/ppiankov/onesource/internal/model"
	"github.com/ppiankov/onesource/internal/trace"
)

// traceRetention bounds how long an ask's audit trace stays queryable.
const traceRetention = 30 * time.Minute

// loadConfig merges defaults with the config file and environment.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// buildAssembler wires registry, hub, trace store, and the optional
// summarizer from configuration. Adapters without a scope are left
// unregistered; they will not appear in per-provider diagnostics.
func buildAssembler(cfg *model.Config, logger zerolog.Logger) (*answer.Assembler, error) {
	tokens := connector.EnvTokenSource{}
	limiter := connector.NewLimiter(cfg.Aggregator.RequestsPerSecond, cfg.Aggregator.Burst)

	var store cache.Cache
	if cfg.Cache.Enabled {
		store = cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL)
	}

	registry := connector.NewRegistry()
	if cfg.Providers.Slack.Enabled {
		registry.Register(connector.NewSlackAdapter(cfg.Providers.Slack, cfg.HTTP, tokens, limiter, store, cfg.Cache.TTL))
	}
	if cfg.Providers.Drive.Enabled && cfg.Providers.Drive.FolderID != "" {
		registry.Register(connector.NewDriveAdapter(cfg.Providers.Drive, cfg.HTTP, tokens, limiter, store, cfg.Cache.TTL))
	}
	if cfg.Providers.GitHub.Enabled && (cfg.Providers.GitHub.Org != "" || len(cfg.Providers.GitHub.Repos) > 0) {
		registry.Register(connector.NewGitHubAdapter(cfg.Providers.GitHub, cfg.HTTP, tokens, limiter, store, cfg.Cache.TTL))
	}

	hub := connector.NewHub(registry, cfg.Aggregator.PerProviderTimeout, logger)

	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize LLM provider")
		} else {
			summarizer = s
		}
	}

	return answer.NewAssembler(hub, trace.NewStore(traceRetention), summarizer, logger, cfg.Aggregator.Limit), nil
}
