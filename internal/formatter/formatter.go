package formatter

import (
	"strings"

	"github.com/yoockh/oscesim/internal/gate"
)

// In-character lines used when the normal flow cannot produce an answer.
const (
	NotSure  = "I'm not exactly sure what you're asking about. Can you be more specific?"
	Lost     = "I'm sorry, I'm feeling a bit lost. Can we start over?"
	Unclear  = "I'm sorry, I didn't quite catch that. Could you rephrase it?"
	NurseAck = "Yes, doctor. I'll take care of that right away."
)

// Format renders the outcome of a gated turn. A blocked result always wins over the fact.
func Format(g gate.Result, f Fact) string {
	if !g.Allowed {
		return Block(g.Reason)
	}
	if !f.Found || strings.TrimSpace(f.Text) == "" {
		return NotSure
	}
	return strings.TrimSpace(f.Text)
}

// Block returns the refusal verbatim so tests can compare it with the gate's reason.
func Block(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return NotSure
	}
	return reason
}
