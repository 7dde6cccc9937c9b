package conversation

import (
	"regexp"
	"strings"
)

// InputScan is the verdict for one visitor message before it reaches a model.
type InputScan struct {
	Blocked   bool
	Score     float64
	Reasons   []string
	Sanitized string
}

type guardRule struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

const (
	guardBlockScore    = 0.7
	guardSanitizeScore = 0.3
)

// guardedReply is sent instead of a model answer when a question is blocked.
const guardedReply = "I can help with questions about our company, products and pricing, or put you in touch with our team. What would you like to know?"

var guardRules = []guardRule{
	// instruction override
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?|directives?)`), "override:instructions", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "override:role", 0.7},
	{regexp.MustCompile(`(?i)new\s+role\s*:|new\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "override:new_role", 0.9},
	{regexp.MustCompile(`(?i)(override|bypass)\s+(your\s+)?(system|instructions?|rules?|safety|filters?|guidelines?|content\s+policy)`), "override:bypass", 0.8},
	{regexp.MustCompile(`(?i)(pretend|imagine|assume)\s+(that\s+)?(you\s+)?(are|have|were|don'?t\s+have)\s+(no\s+)?(rules?|restrictions?|limits?|guidelines?|filters?)`), "override:pretend", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|unrestricted\s*mode`), "override:jailbreak", 0.9},

	// prompt and secret extraction
	// Both rules need an extraction verb aimed at the assistant itself, so
	// "show me your instructions for SSO" and "where is my API key" pass.
	{regexp.MustCompile(`(?i)(reveal|show|print|output|repeat|leak|dump|tell\s+me)\s+(me\s+)?(your|the)\s+(system\s+prompt|initial\s+prompt|hidden\s+prompt|system\s+message|(original|hidden|secret|internal|initial)\s+instructions?|instructions?\W*$|instructions?\s+(you\s+were|verbatim|word\s+for\s+word))`), "extract:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(reveal|show|give|tell|send|share|print|leak|dump|what\s+(is|are|'s))\s+(me\s+|us\s+)?your\s+(own\s+)?(api|secret|aws|openai|database|db|admin)?\s*(keys?|tokens?|secrets?|passwords?|credentials?)\b`), "extract:credentials", 0.8},
	{regexp.MustCompile(`(?i)repeat\s+(everything|all|the\s+text)\s+(above|before|from\s+the\s+(start|beginning))`), "extract:repeat_above", 0.7},

	// markup and model control tokens
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "markup:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`), "markup:role_marker", 0.7},
	{regexp.MustCompile(`(?i)<\s*(script|iframe|object|embed|style|svg|form)\b`), "markup:html", 0.6},
	{regexp.MustCompile(`!\[.*\]\(https?://`), "markup:remote_image", 0.4},
}

var guardStrip = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`),
	regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`),
	regexp.MustCompile(`(?i)<\s*(script|iframe|object|embed|style|svg|form)\b[^>]*>`),
	regexp.MustCompile(`!\[.*?\]\(https?://[^)]+\)`),
}

// ScanInput scores text against the guard rules. The score is the strongest
// matching rule plus 0.1 for every additional match, capped at 1.
func ScanInput(text string) InputScan {
	scan := InputScan{Sanitized: text}
	if strings.TrimSpace(text) == "" {
		return scan
	}

	top := 0.0
	for _, rule := range guardRules {
		if !rule.re.MatchString(text) {
			continue
		}
		scan.Reasons = append(scan.Reasons, rule.reason)
		if rule.weight > top {
			top = rule.weight
		}
	}
	if len(scan.Reasons) == 0 {
		return scan
	}

	scan.Score = top + float64(len(scan.Reasons)-1)*0.1
	if scan.Score > 1 {
		scan.Score = 1
	}
	switch {
	case scan.Score >= guardBlockScore:
		scan.Blocked = true
	case scan.Score >= guardSanitizeScore:
		scan.Sanitized = StripInjectionMarkup(text)
	}
	return scan
}

// StripInjectionMarkup removes model control tokens, fake role markers and
// active HTML while keeping the rest of the text.
func StripInjectionMarkup(text string) string {
	for _, re := range guardStrip {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
