package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAILLMClient implements LLMClient over a langchaingo chat model.
type OpenAILLMClient struct {
	llm       llms.Model
	modelName string
}

// NewOpenAILLMClient creates an OpenAI-backed client.
func NewOpenAILLMClient(apiKey, modelName string) (*OpenAILLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: openai api key is required")
	}
	model, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("conversation: create openai model: %w", err)
	}
	return NewLangchainLLMClient(model, modelName), nil
}

// NewLangchainLLMClient wraps any langchaingo model.
func NewLangchainLLMClient(model llms.Model, modelName string) *OpenAILLMClient {
	if model == nil {
		panic("conversation: langchain model cannot be nil")
	}
	return &OpenAILLMClient{llm: model, modelName: modelName}
}

func (c *OpenAILLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	messages := make([]llms.MessageContent, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, block))
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case ChatRoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, content))
		case ChatRoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, content))
		case ChatRoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, content))
		default:
			return LLMResponse{}, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}
	if len(messages) == 0 {
		return LLMResponse{}, errors.New("conversation: openai requires at least one message")
	}

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(int(req.MaxTokens)))
	}
	if req.Temperature >= 0 {
		opts = append(opts, llms.WithTemperature(float64(req.Temperature)))
	}
	if req.TopP > 0 {
		opts = append(opts, llms.WithTopP(float64(req.TopP)))
	}
	if req.Tool != nil {
		opts = append(opts,
			llms.WithTools([]llms.Tool{{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        req.Tool.Name,
					Description: req.Tool.Description,
					Parameters:  req.Tool.JSONSchema(),
				},
			}}),
			llms.WithToolChoice(llms.ToolChoice{
				Type:     "function",
				Function: &llms.FunctionReference{Name: req.Tool.Name},
			}),
		)
	}

	response, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: openai completion failed: %w", err)
	}
	if response == nil || len(response.Choices) == 0 {
		return LLMResponse{}, errors.New("conversation: openai returned no choices")
	}

	choice := response.Choices[0]
	result := LLMResponse{
		Text:       strings.TrimSpace(choice.Content),
		StopReason: choice.StopReason,
		Usage:      langchainUsage(choice.GenerationInfo),
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		result.ToolCall = &ToolCall{
			Name:      tc.FunctionCall.Name,
			Arguments: json.RawMessage(tc.FunctionCall.Arguments),
		}
		break
	}
	return result, nil
}

func langchainUsage(info map[string]any) TokenUsage {
	read := func(key string) int32 {
		switch v := info[key].(type) {
		case int:
			return int32(v)
		case int32:
			return v
		case int64:
			return int32(v)
		case float64:
			return int32(v)
		}
		return 0
	}
	return TokenUsage{
		InputTokens:  read("PromptTokens"),
		OutputTokens: read("CompletionTokens"),
		TotalTokens:  read("TotalTokens"),
	}
}
