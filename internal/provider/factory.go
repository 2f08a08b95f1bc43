package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/config"
)

// NewRegistryFromConfig registers every adapter the configuration enables.
func NewRegistryFromConfig(cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	counter := NewTiktokenCounter(logger)
	registry := NewRegistry()

	if cfg.OpenAIAPIKey != "" {
		p, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.ProviderTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai provider: %w", err)
		}
		registry.Register(Instrument(p))
	}
	if cfg.OllamaURL != "" {
		p, err := NewOllamaProvider(cfg.OllamaURL, cfg.ProviderTimeout, counter, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama provider: %w", err)
		}
		registry.Register(Instrument(p))
	}
	if cfg.EnableEchoProvider {
		registry.Register(Instrument(NewEchoProvider(counter)))
	}

	if len(registry.Names()) == 0 {
		logger.Warn("No provider adapters configured; executions will fail with client_error")
	} else {
		logger.Info("Provider adapters registered", zap.Strings("providers", registry.Names()))
	}
	return registry, nil
}
