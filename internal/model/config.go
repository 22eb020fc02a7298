package model

import "time"

// Config is the full runtime configuration. Values merge from defaults,
// ~/.onesource/config.yaml, ONESOURCE_* env vars, and CLI flags.
type Config struct {
	Aggregator AggregatorConfig `yaml:"aggregator" mapstructure:"aggregator"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// AggregatorConfig bounds one fan-out round.
type AggregatorConfig struct {
	PerProviderTimeout time.Duration `yaml:"per_provider_timeout" mapstructure:"per_provider_timeout"` // each adapter call, independently
	Limit              int           `yaml:"limit" mapstructure:"limit"`                               // hint passed to adapters, never used to truncate
	RequestsPerSecond  float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`   // per-provider outbound rate
	Burst              int           `yaml:"burst" mapstructure:"burst"`
}

// HTTPConfig applies to every outbound adapter call.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// ProvidersConfig scopes each adapter. An adapter with no scope (or no
// token at runtime) is simply not registered for the round.
type ProvidersConfig struct {
	Slack  SlackConfig  `yaml:"slack" mapstructure:"slack"`
	Drive  DriveConfig  `yaml:"drive" mapstructure:"drive"`
	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`
}

// SlackConfig scopes the conversation adapter.
type SlackConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	Channels []string `yaml:"channels" mapstructure:"channels"` // empty = discover
	Fast     bool     `yaml:"fast" mapstructure:"fast"`         // pins-only fast path, single channel
}

// DriveConfig scopes the file-store adapter.
type DriveConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	FolderID      string `yaml:"folder_id" mapstructure:"folder_id"`
	TrustedFolder string `yaml:"trusted_folder" mapstructure:"trusted_folder"` // authority bonus folder name
}

// GitHubConfig scopes the code-host adapter. Org wins over Repos; with
// neither the adapter stays unregistered to avoid public-index noise.
type GitHubConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Org     string   `yaml:"org" mapstructure:"org"`
	Repos   []string `yaml:"repos" mapstructure:"repos"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig controls the per-provider result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig configures the optional answer summarizer.
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // "openai" or "" (disabled)
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"` // env only; never serialized
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	JSON    bool `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Aggregator: AggregatorConfig{
			PerProviderTimeout: 3 * time.Second,
			Limit:              5,
			RequestsPerSecond:  2,
			Burst:              5,
		},
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "OneSource/0.1 (+https://github.com/ppiankov/onesource)",
		},
		Providers: ProvidersConfig{
			Slack:  SlackConfig{Enabled: true},
			Drive:  DriveConfig{Enabled: true, TrustedFolder: "Runbooks"},
			GitHub: GitHubConfig{Enabled: true, BaseURL: "https://api.github.com"},
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     3 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:       "", // disabled by default
			TimeoutSeconds: 30,
			StrictEvidence: true,
			MaxTokens:      600,
		},
		Output: OutputConfig{},
	}
}
