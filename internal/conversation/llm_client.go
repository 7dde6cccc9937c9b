package conversation

import (
	"context"
	"encoding/json"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one role-tagged entry of a conversation transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a completion request. When Tool is set the provider must answer
// with a call to that tool instead of free text.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	Tool        *ToolSchema
}

// ToolCall is a structured answer returned for a ToolSchema request.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

type LLMResponse struct {
	Text       string
	ToolCall   *ToolCall
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the completion provider boundary.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
