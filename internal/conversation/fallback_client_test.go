package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
)

func fallbackPair(primary, fallback LLMClient, m *metrics.ConversationMetrics) *FallbackLLMClient {
	return NewFallbackLLMClient(
		NamedLLMClient{Name: "bedrock", Client: primary},
		NamedLLMClient{Name: "openai", Client: fallback},
		m, nil,
	)
}

func TestFallbackLLMClient(t *testing.T) {
	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubLLMClient{responses: []LLMResponse{textResponse("primary")}}
		fallback := &stubLLMClient{}
		resp, err := fallbackPair(primary, fallback, nil).Complete(context.Background(), LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "primary", resp.Text)
		assert.Zero(t, fallback.calls())
	})

	t.Run("fallback used on failure", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.NewConversationMetrics(reg)
		primary := &stubLLMClient{errs: []error{errors.New("primary down")}}
		fallback := &stubLLMClient{responses: []LLMResponse{textResponse("fallback")}}
		tool := classifyIntentTool
		resp, err := fallbackPair(primary, fallback, m).Complete(context.Background(), LLMRequest{Tool: &tool})
		require.NoError(t, err)
		assert.Equal(t, "fallback", resp.Text)
		require.Equal(t, 1, fallback.calls())
		assert.Equal(t, "classify_intent", fallback.requests[0].Tool.Name, "structured requests are forwarded intact")
		series, err := testutil.GatherAndCount(reg, "support_llm_fallbacks_total")
		require.NoError(t, err)
		assert.Equal(t, 1, series)
	})

	t.Run("both fail", func(t *testing.T) {
		primaryErr := errors.New("primary down")
		fallbackErr := errors.New("fallback down")
		primary := &stubLLMClient{errs: []error{primaryErr}}
		fallback := &stubLLMClient{errs: []error{fallbackErr}}
		_, err := fallbackPair(primary, fallback, nil).Complete(context.Background(), LLMRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, primaryErr)
		assert.ErrorIs(t, err, fallbackErr)
		assert.Contains(t, err.Error(), "bedrock and openai")
	})

	t.Run("no fallback", func(t *testing.T) {
		primary := &stubLLMClient{errs: []error{errors.New("primary down")}}
		client := NewFallbackLLMClient(NamedLLMClient{Name: "bedrock", Client: primary}, NamedLLMClient{}, nil, nil)
		_, err := client.Complete(context.Background(), LLMRequest{})
		assert.EqualError(t, err, "primary down")
	})

	t.Run("cancelled turn skips fallback", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary := &stubLLMClient{errs: []error{context.Canceled}}
		fallback := &stubLLMClient{responses: []LLMResponse{textResponse("late")}}
		_, err := fallbackPair(primary, fallback, nil).Complete(ctx, LLMRequest{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, fallback.calls())
	})
}

func TestCompletionPurpose(t *testing.T) {
	tool := classifyIntentTool
	assert.Equal(t, "classify_intent", completionPurpose(LLMRequest{Tool: &tool}))
	assert.Equal(t, "answer", completionPurpose(LLMRequest{}))
}

type deadlineClient struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineClient) Complete(ctx context.Context, _ LLMRequest) (LLMResponse, error) {
	d.deadline, d.ok = ctx.Deadline()
	return textResponse("ok"), nil
}

func TestInstrumentedLLMClientAppliesTimeout(t *testing.T) {
	inner := &deadlineClient{}
	m := metrics.NewConversationMetrics(prometheus.NewRegistry())
	client := NewInstrumentedLLMClient(inner, "bedrock", 5*time.Second, m)

	_, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	require.True(t, inner.ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), inner.deadline, time.Second)

	inner = &deadlineClient{}
	_, err = NewInstrumentedLLMClient(inner, "bedrock", 0, nil).Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.False(t, inner.ok)
}
