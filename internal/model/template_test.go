package model

import (
	"strings"
	"testing"

	"github.com/koopa0/llamagate/internal/session"
)

func TestFormatChat(t *testing.T) {
	messages := []session.Message{
		{Role: session.RoleSystem, Content: "be terse"},
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: "hi"},
	}

	got := FormatChat(messages)

	if !strings.HasPrefix(got, "<|begin_of_text|>") {
		t.Errorf("missing begin-of-text marker: %q", got)
	}
	if !strings.HasSuffix(got, "<|start_header_id|>assistant<|end_header_id|>\n\n") {
		t.Errorf("missing trailing assistant cue: %q", got)
	}
	for _, want := range []string{
		"<|start_header_id|>system<|end_header_id|>\n\nbe terse<|eot_id|>",
		"<|start_header_id|>user<|end_header_id|>\n\nhello<|eot_id|>",
		"<|start_header_id|>assistant<|end_header_id|>\n\nhi<|eot_id|>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing block %q\nfull: %q", want, got)
		}
	}
	if strings.Contains(got, DefaultSystemPrompt) {
		t.Errorf("default system prompt injected despite explicit one: %q", got)
	}
}

func TestFormatChatInjectsDefaultSystemPrompt(t *testing.T) {
	got := FormatChat([]session.Message{{Role: session.RoleUser, Content: "hello"}})

	wantBlock := "<|start_header_id|>system<|end_header_id|>\n\n" + DefaultSystemPrompt + "<|eot_id|>"
	if !strings.Contains(got, wantBlock) {
		t.Errorf("default system block missing: %q", got)
	}
	// The injected system block comes before the first user block.
	if strings.Index(got, wantBlock) > strings.Index(got, "hello") {
		t.Errorf("system block rendered after user turn: %q", got)
	}
}

func TestFormatChatUnknownRoleBecomesUser(t *testing.T) {
	got := FormatChat([]session.Message{{Role: "tool", Content: "payload"}})
	if !strings.Contains(got, "<|start_header_id|>user<|end_header_id|>\n\npayload<|eot_id|>") {
		t.Errorf("unknown role not rendered as user: %q", got)
	}
}
