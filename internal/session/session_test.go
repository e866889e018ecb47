package session

import (
	"fmt"
	"testing"
)

func TestNewSeedsSystemPrompt(t *testing.T) {
	s := New("s1", Config{MaxTurns: 5, SystemPrompt: "be brief"})

	if len(s.Messages) != 1 {
		t.Fatalf("expected 1 seeded message, got %d", len(s.Messages))
	}
	if s.Messages[0].Role != RoleSystem || s.Messages[0].Content != "be brief" {
		t.Errorf("unexpected seeded message: %+v", s.Messages[0])
	}

	empty := New("s2", Config{MaxTurns: 5})
	if len(empty.Messages) != 0 {
		t.Errorf("expected no messages without a system prompt, got %d", len(empty.Messages))
	}
}

func TestTrimKeepsRecentTurns(t *testing.T) {
	tests := []struct {
		name      string
		maxTurns  int
		sysPrompt string
		turns     int
		wantLen   int
		wantFirst string
	}{
		{
			name:      "under the limit nothing trimmed",
			maxTurns:  10,
			turns:     3,
			wantLen:   6,
			wantFirst: "user-0",
		},
		{
			name:      "over the limit drops oldest pairs",
			maxTurns:  2,
			turns:     5,
			wantLen:   4,
			wantFirst: "user-3",
		},
		{
			name:      "system prompt survives trimming",
			maxTurns:  1,
			sysPrompt: "pinned",
			turns:     4,
			wantLen:   3, // system + 1 pair
			wantFirst: "pinned",
		},
		{
			name:     "zero max turns keeps no completed pair",
			maxTurns: 0,
			turns:    3,
			wantLen:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("s", Config{MaxTurns: tt.maxTurns, SystemPrompt: tt.sysPrompt})
			for i := 0; i < tt.turns; i++ {
				s.AddUserMessage(fmt.Sprintf("user-%d", i))
				s.AddAssistantMessage(fmt.Sprintf("assistant-%d", i))
			}

			if len(s.Messages) != tt.wantLen {
				t.Fatalf("got %d messages, want %d: %+v", len(s.Messages), tt.wantLen, s.Messages)
			}
			if tt.wantLen > 0 && s.Messages[0].Content != tt.wantFirst {
				t.Errorf("first message = %q, want %q", s.Messages[0].Content, tt.wantFirst)
			}
		})
	}
}

func TestTrimSparesIncompleteTurn(t *testing.T) {
	s := New("s", Config{MaxTurns: 1})
	s.AddUserMessage("q1")
	s.AddAssistantMessage("a1")
	// A pending user message is half a turn and must not trigger trimming
	// of itself or its predecessor pair.
	s.AddUserMessage("q2")

	if len(s.Messages) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(s.Messages), s.Messages)
	}
	if s.Messages[2].Content != "q2" {
		t.Errorf("pending user message missing, got %+v", s.Messages)
	}

	// Completing the turn pushes the count to 2 and drops the oldest pair.
	s.AddAssistantMessage("a2")
	if len(s.Messages) != 2 {
		t.Fatalf("after completing turn: got %d messages, want 2", len(s.Messages))
	}
	if s.Messages[0].Content != "q2" || s.Messages[1].Content != "a2" {
		t.Errorf("wrong surviving pair: %+v", s.Messages)
	}
}

func TestClear(t *testing.T) {
	t.Run("keeps system message", func(t *testing.T) {
		s := New("s", Config{MaxTurns: 5, SystemPrompt: "pinned"})
		s.AddUserMessage("q")
		s.AddAssistantMessage("a")

		s.Clear()

		if len(s.Messages) != 1 || s.Messages[0].Role != RoleSystem {
			t.Errorf("expected only system message after clear, got %+v", s.Messages)
		}
	})

	t.Run("empties without system message", func(t *testing.T) {
		s := New("s", Config{MaxTurns: 5})
		s.AddUserMessage("q")

		s.Clear()

		if len(s.Messages) != 0 {
			t.Errorf("expected empty history, got %+v", s.Messages)
		}
	})
}

func TestCloneIsIndependent(t *testing.T) {
	s := New("s", Config{MaxTurns: 5})
	s.AddUserMessage("original")

	c := s.Clone()
	c.Messages[0].Content = "mutated"
	c.AddUserMessage("extra")

	if s.Messages[0].Content != "original" {
		t.Errorf("mutating the clone changed the source: %+v", s.Messages)
	}
	if len(s.Messages) != 1 {
		t.Errorf("appending to the clone changed the source length: %d", len(s.Messages))
	}
}

func TestNormalize(t *testing.T) {
	m := Normalize(Message{Role: "USER", Content: "hi"})
	if m.Role != RoleUser {
		t.Errorf("role = %q, want %q", m.Role, RoleUser)
	}
	if m.Content != "hi" {
		t.Errorf("content = %q, want %q", m.Content, "hi")
	}
}
