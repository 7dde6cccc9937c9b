package conversation

import (
	"fmt"

	"github.com/wolfman30/webchat-support-agent/internal/leads"
)

// Update is the partial state change produced by one handler invocation.
// Nil pointer fields leave the corresponding state untouched.
type Update struct {
	Messages   []ChatMessage
	Profile    *UserProfile
	LeadStatus *LeadStatus
	LeadStep   *LeadStep
	Lead       *leads.Record
	Scratch    *FlowScratch

	// ResetLead starts a fresh lead episode. It is applied before every other field.
	ResetLead bool
}

// Merge applies upd to state and returns the new state. The input state is not
// modified. Illegal status transitions and updates that break the state
// invariants yield ErrContractViolation.
func Merge(state State, upd Update) (State, error) {
	next := state.normalize().Clone()

	if upd.ResetLead {
		if next.LeadStatus == LeadStatusCollecting {
			return state, fmt.Errorf("%w: cannot reset an active lead flow", ErrContractViolation)
		}
		next.LeadStatus = LeadStatusNone
		next.LeadStep = LeadStepIntro
		next.Lead = nil
		next.Scratch = FlowScratch{}
	}

	next.Messages = append(next.Messages, upd.Messages...)

	if upd.Profile != nil {
		next.Profile = next.Profile.Merge(*upd.Profile)
	}
	if upd.LeadStatus != nil {
		if !legalTransition(next.LeadStatus, *upd.LeadStatus) {
			return state, fmt.Errorf("%w: lead status %s -> %s", ErrContractViolation, next.LeadStatus, *upd.LeadStatus)
		}
		next.LeadStatus = *upd.LeadStatus
	}
	if upd.LeadStep != nil {
		next.LeadStep = *upd.LeadStep
	}
	if upd.Lead != nil {
		lead := *upd.Lead
		next.Lead = &lead
	}
	if upd.Scratch != nil {
		next.Scratch = *upd.Scratch
	}

	if err := next.Validate(); err != nil {
		return state, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}
	return next, nil
}

func legalTransition(from, to LeadStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case LeadStatusNone:
		return to == LeadStatusCollecting
	case LeadStatusCollecting:
		return to == LeadStatusSent || to == LeadStatusFailed
	}
	return false
}
