package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterGuardrailWinsOverClassifier(t *testing.T) {
	classifiers := map[string]Classifier{
		"keyword":    NewKeywordClassifier(),
		"says qa":    routeClassifier{route: RouteQA},
		"off topic":  routeClassifier{route: RouteOffTopic},
		"errors out": routeClassifier{err: errors.New("boom")},
	}
	state := stateWith(LeadStatusCollecting, LeadStepGather, userMsg("what's the weather like?"))

	for name, c := range classifiers {
		t.Run(name, func(t *testing.T) {
			router := NewRouter(c, nil)
			assert.Equal(t, RouteLeadCapture, router.Route(context.Background(), state))
		})
	}
}

func TestRouterDefaultsToQAWithoutUserMessage(t *testing.T) {
	router := NewRouter(routeClassifier{route: RouteLeadCapture}, nil)
	state := stateWith(LeadStatusNone, LeadStepIntro, assistantMsg("Hi! How can I help?"))
	assert.Equal(t, RouteQA, router.Route(context.Background(), state))
}

func TestRouterFailsOpenToQA(t *testing.T) {
	state := stateWith(LeadStatusNone, LeadStepIntro, userMsg("book a call"))

	router := NewRouter(routeClassifier{err: errors.New("timeout")}, nil)
	assert.Equal(t, RouteQA, router.Route(context.Background(), state))

	router = NewRouter(routeClassifier{route: Route("sales")}, nil)
	assert.Equal(t, RouteQA, router.Route(context.Background(), state))
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		text string
		want Route
	}{
		{"I'd like a demo", RouteLeadCapture},
		{"Can I SPEAK WITH someone from your team?", RouteLeadCapture},
		{"How much is pricing for 10 seats?", RouteLeadCapture},
		{"Please reach out to me", RouteLeadCapture},
		{"What does your product do?", RouteQA},
		{"Do you integrate with Slack?", RouteQA},
	}
	c := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := c.Classify(context.Background(), stateWith(LeadStatusNone, LeadStepIntro, userMsg(tt.text)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordClassifierCustomVocabulary(t *testing.T) {
	c := NewKeywordClassifier("  Trial ", "")
	got, _ := c.Classify(context.Background(), stateWith(LeadStatusNone, LeadStepIntro, userMsg("can I start a trial?")))
	assert.Equal(t, RouteLeadCapture, got)
	got, _ = c.Classify(context.Background(), stateWith(LeadStatusNone, LeadStepIntro, userMsg("I want a demo")))
	assert.Equal(t, RouteQA, got)
}

func TestLLMClassifier(t *testing.T) {
	t.Run("structured label", func(t *testing.T) {
		llm := &stubLLMClient{responses: []LLMResponse{
			toolResponse("classify_intent", map[string]any{"label": "off_topic", "justification": "asks about football"}),
		}}
		router := NewRouter(NewLLMClassifier(llm, nil), nil)
		state := stateWith(LeadStatusNone, LeadStepIntro, userMsg("who won the match?"))

		assert.Equal(t, RouteOffTopic, router.Route(context.Background(), state))
		require.Equal(t, 1, llm.calls())
		req := llm.requests[0]
		require.NotNil(t, req.Tool)
		assert.Equal(t, "classify_intent", req.Tool.Name)
		assert.Equal(t, ChatRoleUser, req.Messages[len(req.Messages)-1].Role)
	})

	t.Run("provider error fails open", func(t *testing.T) {
		llm := &stubLLMClient{errs: []error{errors.New("throttled")}}
		router := NewRouter(NewLLMClassifier(llm, nil), nil)
		state := stateWith(LeadStatusNone, LeadStepIntro, userMsg("I'd like a demo"))
		assert.Equal(t, RouteQA, router.Route(context.Background(), state))
	})

	t.Run("unparseable answer fails open", func(t *testing.T) {
		llm := &stubLLMClient{responses: []LLMResponse{textResponse("lead capture, definitely")}}
		classifier := NewLLMClassifier(llm, nil)
		state := stateWith(LeadStatusNone, LeadStepIntro, userMsg("I'd like a demo"))

		route, err := classifier.Classify(context.Background(), state)
		assert.ErrorIs(t, err, ErrDecode)
		assert.Equal(t, RouteQA, route)
	})
}

func TestRecentMessagesSkipsSystemAndTrims(t *testing.T) {
	history := []ChatMessage{
		{Role: ChatRoleSystem, Content: "sys"},
		userMsg("1"), assistantMsg("2"), userMsg("3"), assistantMsg("4"),
	}
	got := recentMessages(history, 3)
	assert.Equal(t, []ChatMessage{assistantMsg("2"), userMsg("3"), assistantMsg("4")}, got)
}
