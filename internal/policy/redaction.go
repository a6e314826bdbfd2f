package policy

import "regexp"

// redactRule replaces every match of re with a bracketed label.
type redactRule struct {
	label string
	re    *regexp.Regexp
}

// Order matters: secrets and card numbers are masked before the phone rule
// can claim their digit runs.
var redactRules = []redactRule{
	{"bearer", regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._~+/\-]{8,}=*`)},
	{"api_key", regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_\-]{16,}\b`)},
	{"session_id", regexp.MustCompile(`(?i)\b(?:session|sid|tab_id|token)=[A-Za-z0-9\-_.]{8,}`)},
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"card", regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)},
	{"phone", regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)},
}

// Redact masks credentials and personal data a learner might paste into the
// panel, so chat text can be logged. It reports whether anything was masked.
func Redact(input string) (string, bool) {
	out := input
	for _, rule := range redactRules {
		out = rule.re.ReplaceAllString(out, "["+rule.label+"]")
	}
	return out, out != input
}
