package conversation

import (
	"context"
	"fmt"
	"strings"
)

// TurnHandler produces the state update for one routed turn.
type TurnHandler interface {
	Handle(ctx context.Context, state State) (Update, error)
}

const qaInstruction = "You are a helpful AI assistant for a company. " +
	"Use ONLY the following company and product information as the source of truth. " +
	"If the answer is not in this information, say you are not sure."

// QAHandler answers questions grounded in a static knowledge text.
type QAHandler struct {
	client      LLMClient
	knowledge   string
	maxTokens   int32
	temperature float32
}

type QAOption func(*QAHandler)

// WithQAMaxTokens caps the length of answers.
func WithQAMaxTokens(n int32) QAOption {
	return func(h *QAHandler) { h.maxTokens = n }
}

func WithQATemperature(t float32) QAOption {
	return func(h *QAHandler) { h.temperature = t }
}

func NewQAHandler(client LLMClient, knowledge string, opts ...QAOption) *QAHandler {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	h := &QAHandler{
		client:      client,
		knowledge:   knowledge,
		maxTokens:   600,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SystemPrompt returns the grounding instruction sent with every question.
func (h *QAHandler) SystemPrompt() string {
	return qaInstruction + "\n\n" + h.knowledge
}

// Handle answers the latest question. Questions that look like prompt
// injection get a fixed redirect without a provider call.
func (h *QAHandler) Handle(ctx context.Context, state State) (Update, error) {
	messages := state.Messages
	if n := len(messages); n > 0 && messages[n-1].Role == ChatRoleUser {
		scan := ScanInput(messages[n-1].Content)
		if scan.Blocked {
			return Update{
				Messages: []ChatMessage{{Role: ChatRoleAssistant, Content: guardedReply}},
			}, nil
		}
		if scan.Sanitized != messages[n-1].Content {
			messages = append(append([]ChatMessage(nil), messages[:n-1]...), ChatMessage{Role: ChatRoleUser, Content: scan.Sanitized})
		}
	}

	resp, err := h.client.Complete(ctx, LLMRequest{
		System:      []string{h.SystemPrompt()},
		Messages:    messages,
		MaxTokens:   h.maxTokens,
		Temperature: h.temperature,
	})
	if err != nil {
		return Update{}, fmt.Errorf("%w: qa: %v", ErrProvider, err)
	}
	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return Update{}, fmt.Errorf("%w: qa: empty answer", ErrProvider)
	}
	return Update{
		Messages: []ChatMessage{{Role: ChatRoleAssistant, Content: answer}},
	}, nil
}
