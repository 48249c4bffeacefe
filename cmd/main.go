// Package main is the entry point for the OmniChat gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/omnichat/gateway/internal/config"
	"github.com/omnichat/gateway/internal/content"
	"github.com/omnichat/gateway/internal/models"
	"github.com/omnichat/gateway/internal/monitoring"
	"github.com/omnichat/gateway/internal/postprocess"
	"github.com/omnichat/gateway/internal/providers"
	"github.com/omnichat/gateway/internal/server"
	"github.com/omnichat/gateway/internal/service"
	"github.com/omnichat/gateway/internal/store"
	"github.com/omnichat/gateway/internal/websearch"
)

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/omnichat-gateway/.env first
	configEnv := filepath.Join(homeDir, ".config", "omnichat-gateway", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

// resolveConfigPath checks the user flag, then standard locations.
func resolveConfigPath(userConfig string) (string, error) {
	if userConfig != "" {
		if _, err := os.Stat(userConfig); err != nil {
			return "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return userConfig, nil
	}

	searchPaths := []string{"configs/config.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append([]string{
			filepath.Join(homeDir, ".config", "omnichat-gateway", "config.yaml"),
		}, searchPaths...)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found, specify --config path")
}

func main() {
	loadEnvFiles()

	configPath := flag.String("config", "", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Monitoring.LogLevel
	if *debug {
		logLevel = "debug"
	}
	monitoring.Global(monitoring.LoggerConfig{
		Level:  logLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})

	log.Info().Str("config", path).Msg("gateway starting")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("gateway error")
	}
	log.Info().Msg("gateway stopped")
}

// run wires the components and serves until a shutdown signal.
func run(cfg *config.Config) error {
	normalizer := content.NewNormalizer()
	processor := postprocess.New()

	adapters, err := buildAdapters(cfg.Providers, normalizer, processor)
	if err != nil {
		return err
	}

	registry, err := models.NewRegistry(models.DefaultCatalog(adapters)...)
	if err != nil {
		return fmt.Errorf("failed to build model registry: %w", err)
	}

	sessions, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer sessions.Close()

	opts := []service.Option{}
	if cfg.Search.Enabled {
		opts = append(opts, service.WithSearcher(buildSearcher(cfg.Search, adapters)))
	}
	svc := service.New(registry, sessions, opts...)

	srv := server.New(cfg.Server, svc, registry)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// buildAdapters constructs one adapter per configured provider.
func buildAdapters(pc config.ProvidersConfig, n *content.Normalizer, p *postprocess.Processor) (models.Adapters, error) {
	var out models.Adapters

	if c, ok := pc[config.ProviderOpenAI]; ok {
		out.OpenAI = providers.NewOpenAIAdapter(providers.OpenAIConfig{
			APIKey:    c.APIKey,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			Timeout:   c.Timeout,
		}, n, p)
	}
	if c, ok := pc[config.ProviderAnthropic]; ok {
		out.Anthropic = providers.NewAnthropicAdapter(providers.AnthropicConfig{
			APIKey:    c.APIKey,
			Endpoint:  c.GetEndpoint(config.ProviderAnthropic),
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			Timeout:   c.Timeout,
		}, n, p)
	}
	if c, ok := pc[config.ProviderGemini]; ok {
		out.Gemini = providers.NewGeminiAdapter(providers.GeminiConfig{
			APIKey:    c.APIKey,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			Timeout:   c.Timeout,
		}, n, p)
	}
	if c, ok := pc[config.ProviderBedrock]; ok {
		transport, err := providers.NewBedrockSigningTransport(c.Region, nil)
		if err != nil {
			return out, fmt.Errorf("failed to build bedrock transport: %w", err)
		}
		out.Bedrock = providers.NewAnthropicAdapter(providers.AnthropicConfig{
			Endpoint:   c.Endpoint,
			Model:      c.Model,
			MaxTokens:  c.MaxTokens,
			Timeout:    c.Timeout,
			Bedrock:    true,
			HTTPClient: &http.Client{Transport: transport},
		}, n, p)
	}

	return out, nil
}

// openStore opens the configured session store.
func openStore(sc config.StoreConfig) (store.SessionStore, error) {
	switch sc.Type {
	case "sqlite":
		s, err := store.OpenSQLite(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info().Str("path", sc.Path).Msg("sqlite session store ready")
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// buildSearcher wires the web-search augmentation with an optional LLM
// refiner drawn from the configured providers.
func buildSearcher(sc config.SearchConfig, adapters models.Adapters) *websearch.Searcher {
	client := websearch.NewClient(websearch.ClientConfig{
		Endpoint: sc.Endpoint,
		APIKey:   sc.APIKey,
		Timeout:  sc.Timeout,
	})

	var refiner websearch.Refiner
	if adapter := refinerAdapter(sc.RefinerProvider, adapters); adapter != nil {
		refiner = websearch.NewLLMRefiner(adapter)
	}

	return websearch.NewSearcher(client, refiner, websearch.SearcherConfig{
		MaxResults:    sc.MaxResults,
		CacheCapacity: sc.CacheCapacity,
		SearchTTL:     sc.SearchTTL,
		DeepTTL:       sc.DeepTTL,
		LocationTTL:   sc.LocationTTL,
	})
}

func refinerAdapter(provider string, a models.Adapters) providers.Adapter {
	switch provider {
	case config.ProviderOpenAI:
		return a.OpenAI
	case config.ProviderAnthropic:
		return a.Anthropic
	case config.ProviderGemini:
		return a.Gemini
	case config.ProviderBedrock:
		return a.Bedrock
	default:
		return nil
	}
}
