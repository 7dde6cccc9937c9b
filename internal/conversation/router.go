package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// Route names the handler that serves a turn.
type Route string

const (
	RouteQA          Route = "qa"
	RouteLeadCapture Route = "lead_capture"
	RouteOffTopic    Route = "off_topic"
)

func (r Route) valid() bool {
	return r == RouteQA || r == RouteLeadCapture || r == RouteOffTopic
}

// Classifier labels the latest user utterance of a state.
type Classifier interface {
	Classify(ctx context.Context, state State) (Route, error)
}

// Router picks a route for a state. An active lead flow always wins over the
// classifier, and classifier failures fall back to RouteQA.
type Router struct {
	classifier Classifier
	logger     *logging.Logger
}

func NewRouter(classifier Classifier, logger *logging.Logger) *Router {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{classifier: classifier, logger: logger}
}

func (r *Router) Route(ctx context.Context, state State) Route {
	if state.LeadStatus == LeadStatusCollecting {
		return RouteLeadCapture
	}
	if _, ok := state.LastUserMessage(); !ok {
		return RouteQA
	}

	route, err := r.classifier.Classify(ctx, state)
	if err != nil || !route.valid() {
		r.logger.Warn("intent classification failed, defaulting to qa", "error", err, "route", string(route))
		route = RouteQA
	}

	// The classifier must not pull a session out of an active flow.
	if state.LeadStatus == LeadStatusCollecting {
		return RouteLeadCapture
	}
	return route
}

// DefaultLeadKeywords is the vocabulary that signals a sales or contact request.
var DefaultLeadKeywords = []string{
	"contact",
	"reach out",
	"sales",
	"talk to someone",
	"book a call",
	"demo",
	"speak with",
	"pricing",
	"quote",
}

// KeywordClassifier routes to lead capture on a case-insensitive substring match.
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultLeadKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &KeywordClassifier{keywords: normalized}
}

func (c *KeywordClassifier) Classify(_ context.Context, state State) (Route, error) {
	text, ok := state.LastUserMessage()
	if !ok {
		return RouteQA, nil
	}
	text = strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			return RouteLeadCapture, nil
		}
	}
	return RouteQA, nil
}

const classifierSystemPrompt = `You route messages for a company's website chat assistant.
Pick exactly one label for the user's latest message:
- qa: questions about the company, its products, features, or how it works
- lead_capture: the user wants to contact sales, book a demo or call, get pricing or a quote, or talk to a person
- off_topic: anything unrelated to the company and its products
Call classify_intent with the label and a one-sentence justification.`

var classifyIntentTool = ToolSchema{
	Name:        "classify_intent",
	Description: "Classify the intent of the user's latest chat message.",
	Fields: []SchemaField{
		{
			Name:        "label",
			Type:        FieldString,
			Description: "The route that should handle the message.",
			Enum:        []string{string(RouteQA), string(RouteLeadCapture), string(RouteOffTopic)},
			Required:    true,
		},
		{
			Name:        "justification",
			Type:        FieldString,
			Description: "Short reason for the label.",
			Required:    true,
		},
	},
}

type intentClassification struct {
	Label         Route  `json:"label"`
	Justification string `json:"justification"`
}

const classifierContextMessages = 6

// LLMClassifier asks the completion provider for a structured intent label.
type LLMClassifier struct {
	client LLMClient
	logger *logging.Logger
}

func NewLLMClassifier(client LLMClient, logger *logging.Logger) *LLMClassifier {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClassifier{client: client, logger: logger}
}

// Classify returns RouteQA alongside any error so callers can fail open.
func (c *LLMClassifier) Classify(ctx context.Context, state State) (Route, error) {
	tool := classifyIntentTool
	resp, err := c.client.Complete(ctx, LLMRequest{
		System:      []string{classifierSystemPrompt},
		Messages:    recentMessages(state.Messages, classifierContextMessages),
		MaxTokens:   200,
		Temperature: 0,
		Tool:        &tool,
	})
	if err != nil {
		return RouteQA, fmt.Errorf("conversation: classify intent: %w", err)
	}

	var out intentClassification
	if err := decodeToolCall(resp, tool, &out); err != nil {
		return RouteQA, err
	}
	c.logger.Debug("intent classified", "label", string(out.Label), "justification", out.Justification)
	return out.Label, nil
}

// recentMessages returns the last n user/assistant messages.
func recentMessages(history []ChatMessage, n int) []ChatMessage {
	filtered := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == ChatRoleSystem {
			continue
		}
		filtered = append(filtered, msg)
	}
	if len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}
