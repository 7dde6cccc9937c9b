package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
)

// InstrumentedLLMClient bounds each completion by a timeout and records latency.
type InstrumentedLLMClient struct {
	inner    LLMClient
	provider string
	timeout  time.Duration
	metrics  *metrics.ConversationMetrics
}

func NewInstrumentedLLMClient(inner LLMClient, provider string, timeout time.Duration, m *metrics.ConversationMetrics) *InstrumentedLLMClient {
	if inner == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &InstrumentedLLMClient{inner: inner, provider: provider, timeout: timeout, metrics: m}
}

func (c *InstrumentedLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	c.metrics.ObserveCompletion(c.provider, req.Tool != nil, time.Since(start).Seconds(), err)
	return resp, err
}
