package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalYAML is a complete valid config used as the mutation base.
const minimalYAML = `
server:
  port: 8080
  read_timeout: 30s
  write_timeout: 120s
providers:
  openai:
    api_key: sk-test
    model: gpt-4o-mini
store:
  type: memory
monitoring:
  log_level: info
  log_format: json
  log_output: stdout
`

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.Providers["openai"].Model)
	assert.Equal(t, "memory", cfg.Store.Type)
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	yaml := `
server:
  port: ${TEST_PORT:-9090}
  read_timeout: 30s
  write_timeout: 120s
providers:
  openai:
    api_key: ${TEST_OPENAI_KEY}
    model: gpt-4o-mini
store:
  type: memory
monitoring:
  log_level: ${TEST_LOG_LEVEL:-info}
  log_format: json
  log_output: stdout
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port, "unset var takes the default")
	assert.Equal(t, "sk-from-env", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "info", cfg.Monitoring.LogLevel)
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }, "server.port is required"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid server.port"},
		{"missing read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "server.read_timeout is required"},
		{"missing store type", func(c *Config) { c.Store.Type = "" }, "store.type is required"},
		{"unknown store type", func(c *Config) { c.Store.Type = "redis" }, "unknown store.type"},
		{"sqlite without path", func(c *Config) { c.Store.Type = "sqlite" }, "store.path is required"},
		{"no providers", func(c *Config) { c.Providers = nil }, "at least one provider"},
		{"bad log level", func(c *Config) { c.Monitoring.LogLevel = "verbose" }, "invalid monitoring.log_level"},
		{"bad log format", func(c *Config) { c.Monitoring.LogFormat = "xml" }, "invalid monitoring.log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromBytes([]byte(minimalYAML))
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_SearchRequiresEndpointAndKey(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalYAML))
	require.NoError(t, err)

	cfg.Search.Enabled = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.endpoint is required")

	cfg.Search.Endpoint = "https://api.bing.microsoft.com/v7.0/search"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.api_key is required")

	cfg.Search.APIKey = "sub-key"
	assert.NoError(t, cfg.Validate())

	cfg.Search.RefinerProvider = "anthropic"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a configured provider")
}

func TestResolveProviderEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{"anthropic", "anthropic", "claude-3-5-sonnet", "https://api.anthropic.com/v1/messages"},
		{"gemini", "gemini", "gemini-1.5-flash", "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"},
		{"openai", "openai", "gpt-4o-mini", "https://api.openai.com/v1/chat/completions"},
		{"unknown defaults to openai", "custom", "some-model", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProviderEndpoint(tt.provider, tt.model))
		})
	}
}

func TestProviderConfig_GetEndpoint(t *testing.T) {
	custom := ProviderConfig{Model: "claude-3-5-sonnet", Endpoint: "https://my-proxy.example.com/v1/messages"}
	assert.Equal(t, "https://my-proxy.example.com/v1/messages", custom.GetEndpoint("anthropic"))

	auto := ProviderConfig{Model: "claude-3-5-sonnet"}
	assert.Equal(t, "https://api.anthropic.com/v1/messages", auto.GetEndpoint("anthropic"))
}

func TestProvidersConfig_Validate(t *testing.T) {
	assert.NoError(t, ProvidersConfig{
		"openai": {APIKey: "k", Model: "gpt-4o-mini"},
	}.Validate())

	err := ProvidersConfig{"openai": {Model: "gpt-4o-mini"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")

	err = ProvidersConfig{"anthropic": {APIKey: "k"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")

	err = ProvidersConfig{"bedrock": {}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")

	err = ProvidersConfig{"mistral": {APIKey: "k", Model: "m"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
