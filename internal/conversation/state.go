package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/webchat-support-agent/internal/leads"
)

// LeadStatus tracks where a session is in the lead capture lifecycle.
type LeadStatus string

const (
	LeadStatusNone       LeadStatus = "none"
	LeadStatusCollecting LeadStatus = "collecting"
	LeadStatusSent       LeadStatus = "sent"
	LeadStatusFailed     LeadStatus = "failed"
)

// LeadStep is the position inside an active lead capture flow.
// LeadStepSend only exists while a turn is running and is never stored.
type LeadStep string

const (
	LeadStepIntro  LeadStep = "intro"
	LeadStepGather LeadStep = "gather"
	LeadStepReview LeadStep = "review"
	LeadStepSend   LeadStep = "send"
	LeadStepDone   LeadStep = "done"
)

const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldCompany = "company"
	FieldMessage = "message"
)

// UserProfile holds the contact fields gathered so far.
type UserProfile struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// Get returns the profile value for a field name.
func (p UserProfile) Get(field string) string {
	switch field {
	case FieldName:
		return p.Name
	case FieldEmail:
		return p.Email
	case FieldPhone:
		return p.Phone
	case FieldCompany:
		return p.Company
	}
	return ""
}

// Merge overwrites fields with the non-empty values of other.
func (p UserProfile) Merge(other UserProfile) UserProfile {
	if v := strings.TrimSpace(other.Name); v != "" {
		p.Name = v
	}
	if v := strings.TrimSpace(other.Email); v != "" {
		p.Email = v
	}
	if v := strings.TrimSpace(other.Phone); v != "" {
		p.Phone = v
	}
	if v := strings.TrimSpace(other.Company); v != "" {
		p.Company = v
	}
	return p
}

func (p UserProfile) contact() leads.Contact {
	return leads.Contact{Name: p.Name, Email: p.Email, Phone: p.Phone, Company: p.Company}
}

// FlowScratch is per-episode working data of the lead flow. It is cleared when
// a new episode starts.
type FlowScratch struct {
	LeadMessage   string `json:"lead_message,omitempty"`
	AwaitingField string `json:"awaiting_field,omitempty"`
}

// State is the full per-session conversation state.
type State struct {
	Messages   []ChatMessage `json:"messages"`
	Profile    UserProfile   `json:"user_profile"`
	LeadStatus LeadStatus    `json:"lead_status"`
	LeadStep   LeadStep      `json:"lead_step"`
	Lead       *leads.Record `json:"lead,omitempty"`
	Scratch    FlowScratch   `json:"scratch"`
	// Version is owned by the SessionStore: 0 for a session never saved,
	// bumped on every successful Save.
	Version int64 `json:"version"`
}

// NewState returns the state of a session that has not spoken yet.
func NewState() State {
	return State{
		Messages:   []ChatMessage{},
		LeadStatus: LeadStatusNone,
		LeadStep:   LeadStepIntro,
	}
}

// normalize fills defaults for states decoded from older or partial payloads.
func (s State) normalize() State {
	if s.LeadStatus == "" {
		s.LeadStatus = LeadStatusNone
	}
	if s.LeadStep == "" {
		s.LeadStep = LeadStepIntro
	}
	if s.Messages == nil {
		s.Messages = []ChatMessage{}
	}
	return s
}

// Clone returns a copy that shares no mutable memory with s.
func (s State) Clone() State {
	out := s
	out.Messages = append([]ChatMessage(nil), s.Messages...)
	if s.Lead != nil {
		lead := *s.Lead
		out.Lead = &lead
	}
	return out
}

// LastUserMessage returns the most recent user utterance.
func (s State) LastUserMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == ChatRoleUser {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// LastAssistantMessage returns the most recent assistant reply.
func (s State) LastAssistantMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == ChatRoleAssistant {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// Validate checks the coupling between status, step and the lead record.
func (s State) Validate() error {
	switch s.LeadStatus {
	case LeadStatusNone, LeadStatusCollecting, LeadStatusSent, LeadStatusFailed:
	default:
		return fmt.Errorf("unknown lead status %q", s.LeadStatus)
	}
	switch s.LeadStep {
	case LeadStepIntro, LeadStepGather, LeadStepReview, LeadStepDone:
	case LeadStepSend:
		return fmt.Errorf("lead step %q cannot be stored", s.LeadStep)
	default:
		return fmt.Errorf("unknown lead step %q", s.LeadStep)
	}

	active := s.LeadStep == LeadStepGather || s.LeadStep == LeadStepReview
	if (s.LeadStatus == LeadStatusCollecting) != active {
		return fmt.Errorf("lead status %q is inconsistent with step %q", s.LeadStatus, s.LeadStep)
	}
	terminal := s.LeadStatus == LeadStatusSent || s.LeadStatus == LeadStatusFailed
	if terminal != (s.Lead != nil) {
		return fmt.Errorf("lead record presence is inconsistent with status %q", s.LeadStatus)
	}
	return nil
}
