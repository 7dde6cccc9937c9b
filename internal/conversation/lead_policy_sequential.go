package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

var sequentialOrder = []string{FieldName, FieldEmail, FieldCompany, FieldPhone, FieldMessage}

var sequentialPrompts = map[string]string{
	FieldName:    "Happy to connect you with the team. What's your name?",
	FieldEmail:   "What's the best email to reach you?",
	FieldCompany: "Which company are you with? You can say skip.",
	FieldPhone:   "What's a good phone number for the team? You can say skip.",
	FieldMessage: "Anything specific you'd like the team to know? You can say skip.",
}

var sequentialRetryPrompts = map[string]string{
	FieldName:    "Sorry, I didn't catch that. What name should I pass along?",
	FieldEmail:   "That email doesn't look quite right. Could you double-check it for me?",
	FieldCompany: "Which company are you with? You can say skip.",
	FieldPhone:   "That phone number looks too short. Could you include the area code, or say skip?",
	FieldMessage: "What would you like the team to know? You can say skip.",
}

var (
	skipWords        = []string{"skip", "pass", "none", "n/a", "no thanks", "rather not"}
	affirmativeWords = []string{"yes", "y", "yep", "yeah", "yup", "sure", "ok", "okay", "confirm", "correct", "send"}
	affirmativeTerms = []string{"go ahead", "looks good", "send it", "please send", "that's right", "sounds good"}
	negativeWords    = []string{"no", "not", "don't", "dont", "wait", "change", "wrong", "fix"}
)

// SequentialPolicy asks for one field at a time in a fixed order and validates
// each answer before moving on. It never calls a completion provider.
type SequentialPolicy struct{}

func NewSequentialPolicy() *SequentialPolicy {
	return &SequentialPolicy{}
}

func (p *SequentialPolicy) Intro(profile UserProfile) LeadDecision {
	return p.askFrom(profile, FlowScratch{}, -1)
}

func (p *SequentialPolicy) Decide(_ context.Context, turn LeadTurn) LeadDecision {
	switch turn.Step {
	case LeadStepGather:
		if turn.Scratch.AwaitingField == "" {
			return p.askFrom(turn.Profile, turn.Scratch, -1)
		}
		return p.accept(turn, turn.Scratch.AwaitingField, LeadStepGather)
	case LeadStepReview:
		if turn.Scratch.AwaitingField != "" {
			return p.accept(turn, turn.Scratch.AwaitingField, LeadStepReview)
		}
		return p.review(turn)
	default:
		return p.askFrom(turn.Profile, turn.Scratch, -1)
	}
}

// review sends on a confirmation. A confirmation may name a field ("yes, the
// number is right") without reopening it; isAffirmative already rejects
// answers carrying a correction word.
func (p *SequentialPolicy) review(turn LeadTurn) LeadDecision {
	words := tokenize(turn.Utterance)
	if isAffirmative(turn.Utterance, words) {
		return LeadDecision{Next: LeadStepSend}
	}
	if field := mentionedField(turn.Utterance); field != "" {
		return LeadDecision{
			Reply:         fmt.Sprintf("Sure, what should the %s be?", field),
			Next:          LeadStepReview,
			AwaitingField: field,
		}
	}
	return LeadDecision{
		Reply: summarize(turn.Profile, turn.Scratch.LeadMessage),
		Next:  LeadStepReview,
	}
}

// accept validates the utterance as the value of field. In review the flow
// returns to the summary instead of asking for the next field.
func (p *SequentialPolicy) accept(turn LeadTurn, field string, step LeadStep) LeadDecision {
	value := strings.TrimSpace(turn.Utterance)
	dec := LeadDecision{}

	switch {
	case isSkip(value):
		if !optionalField(field) {
			return LeadDecision{Reply: sequentialRetryPrompts[field], Next: step, AwaitingField: field}
		}
	case !fieldValueValid(field, value):
		return LeadDecision{Reply: sequentialRetryPrompts[field], Next: step, AwaitingField: field}
	case field == FieldMessage:
		dec.LeadMessage = value
	default:
		dec.Fields = profileWith(field, value)
	}

	profile := turn.Profile.Merge(dec.Fields)
	scratch := turn.Scratch
	if dec.LeadMessage != "" {
		scratch.LeadMessage = dec.LeadMessage
	}
	if step == LeadStepReview {
		dec.Reply = summarize(profile, scratch.LeadMessage)
		dec.Next = LeadStepReview
		return dec
	}

	next := p.askFrom(profile, scratch, fieldIndex(field))
	next.Fields = dec.Fields
	next.LeadMessage = dec.LeadMessage
	return next
}

// askFrom prompts for the first unset field after position after, or moves to
// review when every later field is known.
func (p *SequentialPolicy) askFrom(profile UserProfile, scratch FlowScratch, after int) LeadDecision {
	for i := after + 1; i < len(sequentialOrder); i++ {
		field := sequentialOrder[i]
		if fieldValue(profile, scratch, field) != "" {
			continue
		}
		reply := sequentialPrompts[field]
		if field == FieldEmail && profile.Name != "" {
			reply = fmt.Sprintf("Thanks, %s. %s", profile.Name, reply)
		}
		return LeadDecision{Reply: reply, Next: LeadStepGather, AwaitingField: field}
	}
	return LeadDecision{Reply: summarize(profile, scratch.LeadMessage), Next: LeadStepReview}
}

func summarize(profile UserProfile, message string) string {
	var b strings.Builder
	b.WriteString("Here's what I have:")
	for _, field := range sequentialOrder {
		value := profile.Get(field)
		if field == FieldMessage {
			value = message
		}
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", fieldLabel(field), value)
	}
	b.WriteString("\nShall I send this to the team? Reply yes to send, or tell me which detail to change.")
	return b.String()
}

func fieldLabel(field string) string {
	if field == "" {
		return ""
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func fieldValue(profile UserProfile, scratch FlowScratch, field string) string {
	if field == FieldMessage {
		return scratch.LeadMessage
	}
	return profile.Get(field)
}

func profileWith(field, value string) UserProfile {
	var p UserProfile
	switch field {
	case FieldName:
		p.Name = value
	case FieldEmail:
		p.Email = value
	case FieldPhone:
		p.Phone = value
	case FieldCompany:
		p.Company = value
	}
	return p
}

func fieldIndex(field string) int {
	for i, f := range sequentialOrder {
		if f == field {
			return i
		}
	}
	return -1
}

func optionalField(field string) bool {
	return field == FieldCompany || field == FieldPhone || field == FieldMessage
}

func fieldValueValid(field, value string) bool {
	switch field {
	case FieldEmail:
		return ValidateEmail(value)
	case FieldPhone:
		return ValidatePhone(value)
	default:
		return value != ""
	}
}

func isSkip(value string) bool {
	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(value), ".!"))
	return containsString(skipWords, normalized)
}

func isAffirmative(text string, words []string) bool {
	for _, w := range words {
		if containsString(negativeWords, w) {
			return false
		}
	}
	if len(words) > 0 && containsString(affirmativeWords, words[0]) {
		return true
	}
	lower := strings.ToLower(text)
	for _, term := range affirmativeTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func mentionedField(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "email") || strings.Contains(lower, "e-mail"):
		return FieldEmail
	case strings.Contains(lower, "phone") || strings.Contains(lower, "number"):
		return FieldPhone
	case strings.Contains(lower, "company"):
		return FieldCompany
	case strings.Contains(lower, "message") || strings.Contains(lower, "note"):
		return FieldMessage
	case strings.Contains(lower, "name"):
		return FieldName
	}
	return ""
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
