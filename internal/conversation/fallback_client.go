package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// NamedLLMClient labels a provider for logs and metrics.
type NamedLLMClient struct {
	Name   string
	Client LLMClient
}

// FallbackLLMClient answers a turn from a second provider when the first one
// fails. A failure caused by the turn's own context is returned as-is, since
// the fallback would run against the same deadline.
type FallbackLLMClient struct {
	primary  NamedLLMClient
	fallback NamedLLMClient
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
}

// NewFallbackLLMClient creates the client. A fallback without a Client leaves
// the primary on its own.
func NewFallbackLLMClient(primary, fallback NamedLLMClient, m *metrics.ConversationMetrics, logger *logging.Logger) *FallbackLLMClient {
	if primary.Client == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{
		primary:  primary,
		fallback: fallback,
		metrics:  m,
		logger:   logger,
	}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Client.Complete(ctx, req)
	if err == nil || c.fallback.Client == nil {
		return resp, err
	}

	purpose := completionPurpose(req)
	if ctx.Err() != nil {
		c.metrics.ObserveFallback(c.primary.Name, c.fallback.Name, "skipped")
		c.logger.Warn("completion failed after the turn was cancelled; fallback skipped",
			"primary", c.primary.Name, "purpose", purpose, "error", err)
		return LLMResponse{}, err
	}

	c.logger.Warn("primary completion failed; retrying on fallback",
		"primary", c.primary.Name,
		"fallback", c.fallback.Name,
		"purpose", purpose,
		"turns", len(req.Messages),
		"error", err,
	)
	resp, fallbackErr := c.fallback.Client.Complete(ctx, req)
	if fallbackErr != nil {
		c.metrics.ObserveFallback(c.primary.Name, c.fallback.Name, "failed")
		c.logger.Error("fallback completion failed too",
			"fallback", c.fallback.Name, "purpose", purpose, "error", fallbackErr)
		return LLMResponse{}, fmt.Errorf("conversation: %s and %s completions failed: %w",
			c.primary.Name, c.fallback.Name, errors.Join(err, fallbackErr))
	}

	c.metrics.ObserveFallback(c.primary.Name, c.fallback.Name, "recovered")
	c.logger.Info("fallback completion recovered the turn", "fallback", c.fallback.Name, "purpose", purpose)
	return resp, nil
}

// completionPurpose is the tool name for structured calls (intent
// classification, lead extraction) and "answer" for free text.
func completionPurpose(req LLMRequest) string {
	if req.Tool != nil {
		return req.Tool.Name
	}
	return "answer"
}
