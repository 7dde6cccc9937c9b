package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeLangchainModel implements llms.Model and captures the last call.
type fakeLangchainModel struct {
	response *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeLangchainModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	f.opts = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.response, f.err
}

func (f *fakeLangchainModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestOpenAILLMClientText(t *testing.T) {
	model := &fakeLangchainModel{response: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        " Hello there ",
		StopReason:     "stop",
		GenerationInfo: map[string]any{"PromptTokens": 10, "CompletionTokens": 3, "TotalTokens": 13},
	}}}}
	client := NewLangchainLLMClient(model, "gpt-4.1-mini")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System:      []string{"be brief"},
		Messages:    []ChatMessage{userMsg("hi"), assistantMsg("hello"), userMsg("what's new?")},
		MaxTokens:   50,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, TokenUsage{InputTokens: 10, OutputTokens: 3, TotalTokens: 13}, resp.Usage)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, 50, model.opts.MaxTokens)
	assert.Empty(t, model.opts.Tools)
}

func TestOpenAILLMClientToolCall(t *testing.T) {
	model := &fakeLangchainModel{response: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:   "call-1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "lead_flow",
				Arguments: `{"reply":"Hi!","intent":"gather"}`,
			},
		}},
	}}}}
	client := NewLangchainLLMClient(model, "gpt-4.1-mini")
	tool := leadFlowTool

	resp, err := client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{userMsg("demo")}, Tool: &tool})
	require.NoError(t, err)
	require.NotNil(t, resp.ToolCall)
	assert.Equal(t, "lead_flow", resp.ToolCall.Name)

	var args leadFlowArgs
	require.NoError(t, decodeToolCall(resp, tool, &args))
	assert.Equal(t, "Hi!", args.Reply)

	require.Len(t, model.opts.Tools, 1)
	assert.Equal(t, "lead_flow", model.opts.Tools[0].Function.Name)
	choice, ok := model.opts.ToolChoice.(llms.ToolChoice)
	require.True(t, ok)
	assert.Equal(t, "lead_flow", choice.Function.Name)
}

func TestOpenAILLMClientErrors(t *testing.T) {
	_, err := NewOpenAILLMClient(" ", "gpt-4.1-mini")
	assert.Error(t, err)

	client := NewLangchainLLMClient(&fakeLangchainModel{err: errors.New("rate limited")}, "m")
	_, err = client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{userMsg("hi")}})
	assert.ErrorContains(t, err, "rate limited")

	client = NewLangchainLLMClient(&fakeLangchainModel{response: &llms.ContentResponse{}}, "m")
	_, err = client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{userMsg("hi")}})
	assert.ErrorContains(t, err, "no choices")

	_, err = client.Complete(context.Background(), LLMRequest{})
	assert.ErrorContains(t, err, "at least one message")
}
