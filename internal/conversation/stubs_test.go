package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/wolfman30/webchat-support-agent/internal/leads"
)

// stubLLMClient replays scripted responses in order and records requests.
type stubLLMClient struct {
	mu        sync.Mutex
	responses []LLMResponse
	errs      []error
	requests  []LLMRequest
}

func (s *stubLLMClient) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return LLMResponse{}, s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return LLMResponse{}, errors.New("stub: no scripted response")
}

func (s *stubLLMClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func textResponse(text string) LLMResponse {
	return LLMResponse{Text: text}
}

func toolResponse(name string, args map[string]any) LLMResponse {
	raw, _ := json.Marshal(args)
	return LLMResponse{ToolCall: &ToolCall{Name: name, Arguments: raw}}
}

func leadFlowResponse(reply string, fields map[string]any, review, send bool) LLMResponse {
	args := map[string]any{
		"reply":             reply,
		"intent":            "gather",
		"advance_to_review": review,
		"advance_to_send":   send,
	}
	if fields != nil {
		args["fields"] = fields
	}
	return toolResponse("lead_flow", args)
}

// stubNotifier records every lead it is asked to forward.
type stubNotifier struct {
	mu      sync.Mutex
	result  bool
	records []leads.Record
}

func (n *stubNotifier) Notify(_ context.Context, record leads.Record) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	return n.result
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

type handlerFunc func(ctx context.Context, state State) (Update, error)

func (f handlerFunc) Handle(ctx context.Context, state State) (Update, error) {
	return f(ctx, state)
}

type routeClassifier struct {
	route Route
	err   error
}

func (c routeClassifier) Classify(context.Context, State) (Route, error) {
	return c.route, c.err
}

func stateWith(status LeadStatus, step LeadStep, messages ...ChatMessage) State {
	s := NewState()
	s.LeadStatus = status
	s.LeadStep = step
	s.Messages = append(s.Messages, messages...)
	return s
}

func userMsg(text string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: text}
}

func assistantMsg(text string) ChatMessage {
	return ChatMessage{Role: ChatRoleAssistant, Content: text}
}
