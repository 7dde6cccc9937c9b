package conversation

import (
	"strings"
	"unicode"
)

const minPhoneDigits = 7

// ValidateEmail reports whether value looks like local@domain.tld.
func ValidateEmail(value string) bool {
	if value == "" || strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return false
	}
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return false
	}
	local, domain := value[:at], value[at+1:]
	if strings.Contains(local, "@") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ValidatePhone reports whether value contains at least seven digits.
func ValidatePhone(value string) bool {
	digits := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

// FieldProblem names a contact field that blocks sending and why.
type FieldProblem struct {
	Field  string
	Reason string
}

// ReadyToSend lists the problems that keep profile from being forwarded.
// An empty result means the record may be sent.
func ReadyToSend(profile UserProfile) []FieldProblem {
	var problems []FieldProblem
	if strings.TrimSpace(profile.Name) == "" {
		problems = append(problems, FieldProblem{Field: FieldName, Reason: "missing"})
	}
	email := strings.TrimSpace(profile.Email)
	switch {
	case email == "":
		problems = append(problems, FieldProblem{Field: FieldEmail, Reason: "missing"})
	case !ValidateEmail(email):
		problems = append(problems, FieldProblem{Field: FieldEmail, Reason: "invalid"})
	}
	if phone := strings.TrimSpace(profile.Phone); phone != "" && !ValidatePhone(phone) {
		problems = append(problems, FieldProblem{Field: FieldPhone, Reason: "invalid"})
	}
	return problems
}

func correctiveReply(problems []FieldProblem) string {
	if len(problems) == 0 {
		return ""
	}
	p := problems[0]
	switch {
	case p.Field == FieldEmail && p.Reason == "invalid":
		return "That email doesn't look quite right. Could you double-check it for me?"
	case p.Field == FieldPhone:
		return "That phone number looks too short. Could you share it with the area code, or say skip?"
	case p.Field == FieldName:
		return "Before I send this along, what name should I pass to the team?"
	default:
		return "Before I send this along, what's the best email to reach you?"
	}
}
