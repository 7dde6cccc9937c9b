package conversation

import (
	"context"
	"strings"

	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// LeadNotifier forwards a captured lead. It reports success and never fails loudly.
type LeadNotifier interface {
	Notify(ctx context.Context, record leads.Record) bool
}

// LeadTurn is the view of a session a LeadPolicy decides on.
type LeadTurn struct {
	Step      LeadStep
	Profile   UserProfile
	Scratch   FlowScratch
	Messages  []ChatMessage
	Utterance string
}

// LeadDecision is a policy's proposal for the next flow step. Fields and
// LeadMessage only overwrite state when non-empty.
type LeadDecision struct {
	Reply         string
	Fields        UserProfile
	LeadMessage   string
	Next          LeadStep
	AwaitingField string
}

// LeadPolicy chooses replies and transitions inside the lead flow.
type LeadPolicy interface {
	// Intro opens a flow for a session with no user message. It must not call a provider.
	Intro(profile UserProfile) LeadDecision
	Decide(ctx context.Context, turn LeadTurn) LeadDecision
}

const (
	leadSentReply     = "Thanks, I've shared your details with the team. They'll be in touch soon."
	leadFailedReply   = "Thanks for the details. I couldn't auto-share them, but I've noted everything for the team."
	leadFallbackReply = "Thanks for sharing. Would you like me to pass this along to the team?"
)

// LeadFlow runs the lead capture state machine. Validation gates the send step
// and the notifier is called at most once per send.
type LeadFlow struct {
	policy   LeadPolicy
	notifier LeadNotifier
	logger   *logging.Logger
}

func NewLeadFlow(policy LeadPolicy, notifier LeadNotifier, logger *logging.Logger) *LeadFlow {
	if policy == nil {
		panic("conversation: lead policy cannot be nil")
	}
	if notifier == nil {
		panic("conversation: lead notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadFlow{policy: policy, notifier: notifier, logger: logger}
}

func (f *LeadFlow) Handle(ctx context.Context, state State) (Update, error) {
	upd := Update{}
	step := state.LeadStep
	scratch := state.Scratch
	entry := state.LeadStatus != LeadStatusCollecting
	if entry {
		upd.ResetLead = state.LeadStatus == LeadStatusSent || state.LeadStatus == LeadStatusFailed
		step = LeadStepIntro
		scratch = FlowScratch{}
	}

	utterance, hasUser := state.LastUserMessage()
	var dec LeadDecision
	if entry && !hasUser {
		dec = f.policy.Intro(state.Profile)
	} else {
		dec = f.policy.Decide(ctx, LeadTurn{
			Step:      step,
			Profile:   state.Profile,
			Scratch:   scratch,
			Messages:  state.Messages,
			Utterance: strings.TrimSpace(utterance),
		})
	}

	profile := state.Profile.Merge(dec.Fields)
	if msg := strings.TrimSpace(dec.LeadMessage); msg != "" {
		scratch.LeadMessage = msg
	}
	scratch.AwaitingField = dec.AwaitingField
	reply := strings.TrimSpace(dec.Reply)
	next := dec.Next

	// A fresh episode always starts gathering, whatever the policy proposed.
	if entry && next != LeadStepGather {
		next = LeadStepGather
	}

	switch next {
	case LeadStepSend:
		problems := ReadyToSend(profile)
		if len(problems) == 0 {
			return f.send(ctx, upd, profile, scratch), nil
		}
		f.logger.Info("lead send blocked by validation", "field", problems[0].Field, "reason", problems[0].Reason)
		next = LeadStepReview
		reply = correctiveReply(problems)
		scratch.AwaitingField = problems[0].Field
	case LeadStepReview, LeadStepGather:
	default:
		next = LeadStepGather
	}
	if reply == "" {
		reply = leadFallbackReply
	}

	status := LeadStatusCollecting
	upd.Messages = []ChatMessage{{Role: ChatRoleAssistant, Content: reply}}
	upd.Profile = &profile
	upd.LeadStatus = &status
	upd.LeadStep = &next
	upd.Scratch = &scratch
	return upd, nil
}

func (f *LeadFlow) send(ctx context.Context, upd Update, profile UserProfile, scratch FlowScratch) Update {
	record := leads.NewRecord(profile.contact(), scratch.LeadMessage, leads.SourceWebchat)
	ok := f.notifier.Notify(ctx, record)

	status, reply := LeadStatusSent, leadSentReply
	if !ok {
		status, reply = LeadStatusFailed, leadFailedReply
		f.logger.Warn("lead notification failed", "lead_id", record.ID)
	} else {
		f.logger.Info("lead forwarded", "lead_id", record.ID)
	}

	step := LeadStepDone
	scratch.AwaitingField = ""
	upd.Messages = []ChatMessage{{Role: ChatRoleAssistant, Content: reply}}
	upd.Profile = &profile
	upd.LeadStatus = &status
	upd.LeadStep = &step
	upd.Lead = &record
	upd.Scratch = &scratch
	return upd
}
