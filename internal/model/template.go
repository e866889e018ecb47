package model

import (
	"strings"

	"github.com/koopa0/llamagate/internal/session"
)

// DefaultSystemPrompt is injected when a conversation carries no system
// message, matching the Llama-3 instruct convention.
const DefaultSystemPrompt = "You are a helpful assistant."

// FormatChat renders a conversation into the Llama-3 chat template:
// a begin-of-text marker, one header/eot block per message and a trailing
// assistant header that cues the model to respond. Unknown roles are
// rendered as user turns.
func FormatChat(messages []session.Message) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")

	hasSystem := false
	for _, m := range messages {
		if m.Role == session.RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem {
		writeBlock(&b, "system", DefaultSystemPrompt)
	}

	for _, m := range messages {
		switch m.Role {
		case session.RoleSystem:
			writeBlock(&b, "system", m.Content)
		case session.RoleAssistant:
			writeBlock(&b, "assistant", m.Content)
		default:
			writeBlock(&b, "user", m.Content)
		}
	}

	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}

func writeBlock(b *strings.Builder, role, content string) {
	b.WriteString("<|start_header_id|>")
	b.WriteString(role)
	b.WriteString("<|end_header_id|>\n\n")
	b.WriteString(content)
	b.WriteString("<|eot_id|>")
}
