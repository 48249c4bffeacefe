// Provider configuration - credentials, models, endpoint resolution.
//
// DESIGN: Providers are a map keyed by provider name (openai, anthropic,
// gemini, bedrock). Endpoints auto-resolve to each vendor's public API
// unless overridden, so a minimal config only needs key and model.
package config

import (
	"fmt"
	"time"
)

// Known provider names. The bedrock variant reuses the Anthropic protocol
// with SigV4 signing instead of an API key.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderBedrock   = "bedrock"
)

// ProvidersConfig maps provider name to its configuration.
type ProvidersConfig map[string]ProviderConfig

// ProviderConfig holds one provider's credentials and model selection.
type ProviderConfig struct {
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Endpoint  string        `yaml:"endpoint"`   // Optional, auto-resolved when empty
	MaxTokens int           `yaml:"max_tokens"` // Response token budget, 0 uses the adapter default
	Timeout   time.Duration `yaml:"timeout"`    // Per-call timeout, 0 uses the adapter default
	Region    string        `yaml:"region"`     // AWS region (bedrock only)
}

// ResolveProviderEndpoint returns the default endpoint for a provider.
// Unknown providers are treated as OpenAI-compatible.
func ResolveProviderEndpoint(provider, model string) string {
	switch provider {
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/messages"
	case ProviderGemini:
		return fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model)
	default:
		return "https://api.openai.com/v1/chat/completions"
	}
}

// GetEndpoint returns the configured endpoint, auto-resolving from the
// provider name when unset.
func (p ProviderConfig) GetEndpoint(provider string) string {
	if p.Endpoint != "" {
		return p.Endpoint
	}
	return ResolveProviderEndpoint(provider, p.Model)
}

// Validate checks each configured provider.
func (p ProvidersConfig) Validate() error {
	for name, cfg := range p {
		switch name {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
			if cfg.APIKey == "" {
				return fmt.Errorf("providers.%s.api_key is required", name)
			}
		case ProviderBedrock:
			// Credentials come from the AWS default chain; only the
			// region is configured here.
			if cfg.Region == "" {
				return fmt.Errorf("providers.bedrock.region is required")
			}
			if cfg.Endpoint == "" {
				return fmt.Errorf("providers.bedrock.endpoint is required")
			}
		default:
			return fmt.Errorf("unknown provider %q", name)
		}
		if cfg.Model == "" && name != ProviderBedrock {
			return fmt.Errorf("providers.%s.model is required", name)
		}
	}
	return nil
}
