package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// BuildLLMClient wires the configured completion provider, wrapped with a
// per-call timeout and metrics, plus an optional fallback provider.
// The returned cleanup releases provider connections.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, m *metrics.ConversationMetrics, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, closePrimary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg, m)
	if err != nil {
		return nil, nil, err
	}
	cleanup := closePrimary

	fallbackName := strings.TrimSpace(cfg.LLMFallback)
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		logger.Info("using LLM provider", "provider", cfg.LLMProvider)
		return primary, cleanup, nil
	}

	fallback, closeFallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg, m)
	if err != nil {
		logger.Warn("fallback LLM provider unavailable; continuing without it", "provider", fallbackName, "error", err)
		return primary, cleanup, nil
	}
	logger.Info("using LLM provider with fallback", "provider", cfg.LLMProvider, "fallback", fallbackName)
	client := conversation.NewFallbackLLMClient(
		conversation.NamedLLMClient{Name: cfg.LLMProvider, Client: primary},
		conversation.NamedLLMClient{Name: fallbackName, Client: fallback},
		m, logger,
	)
	return client, func() {
		closePrimary()
		closeFallback()
	}, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config, m *metrics.ConversationMetrics) (conversation.LLMClient, func(), error) {
	noop := func() {}
	var (
		client  conversation.LLMClient
		cleanup = noop
	)

	switch name {
	case appconfig.ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		client = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	case appconfig.ProviderGemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, nil, fmt.Errorf("bootstrap: GEMINI_API_KEY is required for the gemini provider")
		}
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		client = gemini
		cleanup = func() { _ = gemini.Close() }
	case appconfig.ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, nil, fmt.Errorf("bootstrap: OPENAI_API_KEY is required for the openai provider")
		}
		openai, err := conversation.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: openai client: %w", err)
		}
		client = openai
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown LLM provider %q", name)
	}

	return conversation.NewInstrumentedLLMClient(client, name, cfg.LLMTimeout, m), cleanup, nil
}
