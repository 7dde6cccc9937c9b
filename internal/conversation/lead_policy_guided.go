package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

const (
	guidedIntroReply = "Happy to connect you with the team. What's the best name and email to reach you?"
	guidedSnagReply  = "Sorry, I hit a snag. Could you share the best email to reach you?"

	guidedContextMessages = 8
)

const guidedSystemPrompt = "You are a warm, concise teammate in a webchat. Tone: brief (1-2 sentences), human, no bullets. " +
	"Goals: (1) acknowledge/answer the user, (2) gently gather helpful contact details without sounding like a form. " +
	"Soft priorities: name and email; phone/company/message are nice-to-have. " +
	"If enough info is present, offer to share with the team and ask if they want tweaks; if they confirm, advance to send. " +
	"If they hesitate, allow partial info. Return a lead_flow call with your reply and state updates."

var leadFlowTool = ToolSchema{
	Name:        "lead_flow",
	Description: "Generate a natural reply and propose state updates for lead capture.",
	Fields: []SchemaField{
		{Name: "reply", Type: FieldString, Description: "The assistant's natural, human reply to send.", Required: true},
		{Name: "intent", Type: FieldString, Description: "Where to move the flow next.", Enum: []string{"gather", "review", "send", "other"}, Required: true},
		{Name: "fields", Type: FieldObject, Description: "Contact details the user provided or corrected.", Fields: []SchemaField{
			{Name: FieldName, Type: FieldString},
			{Name: FieldEmail, Type: FieldString},
			{Name: FieldPhone, Type: FieldString},
			{Name: FieldCompany, Type: FieldString},
			{Name: FieldMessage, Type: FieldString},
		}},
		{Name: "advance_to_review", Type: FieldBoolean, Description: "True if enough info to summarize/confirm."},
		{Name: "advance_to_send", Type: FieldBoolean, Description: "True if the user confirmed to send."},
	},
}

type leadFlowArgs struct {
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
	Fields struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Company string `json:"company"`
		Message string `json:"message"`
	} `json:"fields"`
	AdvanceToReview bool `json:"advance_to_review"`
	AdvanceToSend   bool `json:"advance_to_send"`
}

// GuidedPolicy lets the completion provider lead the conversation while the
// flow keeps control of transitions and validation.
type GuidedPolicy struct {
	client LLMClient
	logger *logging.Logger
}

func NewGuidedPolicy(client LLMClient, logger *logging.Logger) *GuidedPolicy {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GuidedPolicy{client: client, logger: logger}
}

func (p *GuidedPolicy) Intro(UserProfile) LeadDecision {
	return LeadDecision{Reply: guidedIntroReply, Next: LeadStepGather}
}

func (p *GuidedPolicy) Decide(ctx context.Context, turn LeadTurn) LeadDecision {
	tool := leadFlowTool
	resp, err := p.client.Complete(ctx, LLMRequest{
		System:      []string{guidedSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: guidedPrompt(turn)}},
		MaxTokens:   400,
		Temperature: 0.6,
		Tool:        &tool,
	})
	if err != nil {
		p.logger.Warn("lead flow completion failed", "error", err)
		return LeadDecision{Reply: guidedSnagReply, Next: LeadStepGather}
	}

	var args leadFlowArgs
	if err := decodeToolCall(resp, tool, &args); err != nil {
		p.logger.Warn("lead flow response rejected", "error", err)
		return LeadDecision{Reply: guidedSnagReply, Next: LeadStepGather}
	}

	dec := LeadDecision{
		Reply: strings.TrimSpace(args.Reply),
		Fields: UserProfile{
			Name:    args.Fields.Name,
			Email:   args.Fields.Email,
			Phone:   args.Fields.Phone,
			Company: args.Fields.Company,
		},
		LeadMessage: args.Fields.Message,
	}
	if dec.Reply == "" {
		dec.Reply = leadFallbackReply
	}

	merged := turn.Profile.Merge(dec.Fields)
	switch {
	case args.AdvanceToSend:
		dec.Next = LeadStepSend
	case args.AdvanceToReview || (merged.Name != "" && merged.Email != ""):
		dec.Next = LeadStepReview
	default:
		dec.Next = LeadStepGather
	}
	return dec
}

func guidedPrompt(turn LeadTurn) string {
	var known []string
	for _, field := range []string{FieldName, FieldEmail, FieldPhone, FieldCompany} {
		if v := turn.Profile.Get(field); v != "" {
			known = append(known, field+": "+v)
		}
	}
	if turn.Scratch.LeadMessage != "" {
		known = append(known, FieldMessage+": "+turn.Scratch.LeadMessage)
	}
	knownStr := "none yet"
	if len(known) > 0 {
		knownStr = strings.Join(known, "; ")
	}

	missing := missingFields(turn.Profile, turn.Scratch)
	missingStr := "none"
	if len(missing) > 0 {
		missingStr = strings.Join(missing, ", ")
	}

	stage := LeadStepGather
	if turn.Step == LeadStepReview || turn.Step == LeadStepDone {
		stage = turn.Step
	}

	var recent []string
	for _, msg := range recentMessages(turn.Messages, guidedContextMessages) {
		role := "Assistant"
		if msg.Role == ChatRoleUser {
			role = "User"
		}
		recent = append(recent, role+": "+msg.Content)
	}
	recentStr := "None"
	if len(recent) > 0 {
		recentStr = strings.Join(recent, "\n")
	}

	return fmt.Sprintf("Known: %s. Missing: %s. Stage: %s. Recent conversation:\n%s\nUser said: %q. Respond naturally in 'reply'. "+
		"If the user provides or corrects details, place them in fields. "+
		"If you have name+email or the user asks to send, set advance_to_review=true. "+
		"If they clearly approve sending, set advance_to_send=true. "+
		"Intent: choose gather while collecting, review to summarize/confirm, send when ready to dispatch. "+
		"If the user already said they only want to share some details, respect that and avoid re-asking unless they invite it.",
		knownStr, missingStr, stage, recentStr, turn.Utterance)
}

// missingFields lists unknown contact fields, most important first.
func missingFields(profile UserProfile, scratch FlowScratch) []string {
	var missing []string
	for _, field := range []string{FieldEmail, FieldName, FieldPhone, FieldCompany} {
		if profile.Get(field) == "" {
			missing = append(missing, field)
		}
	}
	if scratch.LeadMessage == "" {
		missing = append(missing, FieldMessage)
	}
	return missing
}
