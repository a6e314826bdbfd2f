package agentapi

import (
	"embed"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// LoadPrompt returns the named system prompt, falling back to "base" for
// unknown or unsafe names.
func LoadPrompt(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, name)
	if safe == "" {
		safe = "base"
	}
	raw, err := promptFS.ReadFile("prompts/" + safe + ".txt")
	if err != nil {
		raw, _ = promptFS.ReadFile("prompts/base.txt")
	}
	return strings.TrimSpace(string(raw))
}
