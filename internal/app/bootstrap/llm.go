package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/facility-lead-chat/internal/config"
	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// LLM provider names accepted in LLM_PROVIDER and LLM_FALLBACK_PROVIDER.
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// BuildLLMClient returns the configured completion client, or nil when
// LLM_PROVIDER is empty. A failing fallback provider is logged and ignored.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, m *metrics.ChatMetrics, logger *logging.Logger) (conversation.LLMClient, error) {
	if cfg == nil || cfg.LLMProvider == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, err := newProviderClient(ctx, cfg.LLMProvider, cfg.LLMModelID, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	var client conversation.LLMClient = conversation.NewInstrumentedLLMClient(primary, cfg.LLMProvider, m)

	if cfg.LLMFallbackProvider != "" && cfg.LLMFallbackProvider != cfg.LLMProvider {
		fallback, err := newProviderClient(ctx, cfg.LLMFallbackProvider, "", cfg, awsCfg)
		if err != nil {
			logger.Warn("llm fallback provider unavailable", "provider", cfg.LLMFallbackProvider, "error", err)
		} else {
			client = conversation.NewFallbackLLMClient(client,
				conversation.NewInstrumentedLLMClient(fallback, cfg.LLMFallbackProvider, m), logger)
		}
	}

	logger.Info("llm answers enabled", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	return client, nil
}

func newProviderClient(ctx context.Context, provider, modelID string, cfg *appconfig.Config, awsCfg aws.Config) (conversation.LLMClient, error) {
	switch provider {
	case ProviderBedrock:
		if modelID == "" {
			modelID = conversation.DefaultBedrockModel
		}
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), modelID), nil
	case ProviderAnthropic:
		client, err := conversation.NewAnthropicLLMClient(cfg.AnthropicAPIKey, modelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: anthropic client: %w", err)
		}
		return client, nil
	case ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, modelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}
}

// BuildAnswerer wraps client with the configured limits.
func BuildAnswerer(cfg *appconfig.Config, client conversation.LLMClient, logger *logging.Logger) *conversation.Answerer {
	answerCfg := conversation.AnswererConfig{}
	if cfg != nil {
		answerCfg.MaxTokens = int32(cfg.LLMMaxTokens)
		answerCfg.Timeout = cfg.LLMTimeout
	}
	return conversation.NewAnswerer(client, answerCfg, logger)
}
