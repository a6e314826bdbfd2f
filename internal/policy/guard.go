package policy

import (
	"regexp"
	"strings"
)

// MaxUserTextChars caps sanitized user text.
const MaxUserTextChars = 12000

const (
	RefusalInstructions = "I can’t share internal instructions. Tell me what you want to build or learn and I’ll help."
	RefusalLeak         = "I can’t share internal instructions. Ask me about cybersecurity or paste the code you want to fix."
)

var (
	// Chat-template control tokens and role prefixes a user could use to spoof turns.
	controlPattern = regexp.MustCompile(`(?is)(<\|.*?\|>)|(\b(role|system|developer|assistant|user)\s*:)`)

	disclosurePattern = regexp.MustCompile(
		`(?is)\b(system|developer|prompt|instructions|policy|hidden)\b.*\b(show|reveal|print|output|verbatim|dump)\b` +
			`|\b(show|reveal|print|output|verbatim|dump)\b.*\b(system|developer|prompt|instructions|policy|hidden)\b`,
	)

	leakMarkers = []string{"<|", "security:"}
)

// ReplyDecision is the verdict on an outgoing assistant reply.
type ReplyDecision struct {
	Reply   string
	Blocked bool
	Reason  string
}

// SanitizeUserText strips control tokens and role prefixes, trims, and caps the
// result at MaxUserTextChars characters.
func SanitizeUserText(s string) string {
	out := controlPattern.ReplaceAllString(strings.TrimSpace(s), "")
	if r := []rune(out); len(r) > MaxUserTextChars {
		out = string(r[:MaxUserTextChars])
	}
	return strings.TrimSpace(out)
}

// IsDisclosureRequest reports whether s asks to reveal hidden instructions.
func IsDisclosureRequest(s string) bool {
	return disclosurePattern.MatchString(strings.TrimSpace(s))
}

// GuardReply replaces replies that echo instructions or template markers.
func GuardReply(reply string) ReplyDecision {
	if IsDisclosureRequest(reply) {
		return ReplyDecision{Reply: RefusalLeak, Blocked: true, Reason: "disclosure"}
	}
	lower := strings.ToLower(reply)
	for _, marker := range leakMarkers {
		if strings.Contains(lower, marker) {
			return ReplyDecision{Reply: RefusalLeak, Blocked: true, Reason: "marker"}
		}
	}
	return ReplyDecision{Reply: reply}
}

// Preview returns a redacted, shortened copy of s for log fields.
func Preview(s string, n int) string {
	out, _ := Redact(strings.TrimSpace(s))
	r := []rune(out)
	if n > 0 && len(r) > n {
		return string(r[:n]) + "…"
	}
	return out
}
