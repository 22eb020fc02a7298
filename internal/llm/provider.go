package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/onesource/internal/model"
)

// Provider defines the interface for LLM backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates a completion for the prompt
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error)
}

// CompleteRequest contains the input for one completion
type CompleteRequest struct {
	// System primes the model's role
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// CompleteResponse contains the model's output
type CompleteResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled). OpenAI-compatible
	// endpoints (e.g. a local runtime) are reached via BaseURL.
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for the endpoint
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests, seconds
	Timeout int

	// StrictEvidence enforces the citation allowlist (should always be true)
	StrictEvidence bool

	// MaxTokens for response generation
	MaxTokens int
}

// NewProvider creates an LLM provider based on configuration. An empty
// provider name means the summary layer is disabled.
func NewProvider(config Config) (Provider, error) {
	switch config.Provider {
	case "openai":
		return NewOpenAIProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:       mc.Provider,
		Model:          mc.Model,
		APIKey:         mc.APIKey,
		BaseURL:        mc.BaseURL,
		Timeout:        mc.TimeoutSeconds,
		StrictEvidence: mc.StrictEvidence,
		MaxTokens:      mc.MaxTokens,
	}
}
