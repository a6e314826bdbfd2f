package agentapi

import (
	"strings"
	"testing"
)

func TestLoadPromptFallsBackToBase(t *testing.T) {
	base := LoadPrompt("base")
	if !strings.Contains(base, "START_DAY") {
		t.Fatalf("base prompt missing day-plan guidance")
	}
	for _, name := range []string{"", "missing", "../../etc/passwd"} {
		if got := LoadPrompt(name); got != base {
			t.Fatalf("LoadPrompt(%q) did not fall back to base", name)
		}
	}
}
