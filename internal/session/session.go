// Package session provides in-memory conversation histories with
// turn-based trimming.
//
// A session is an ordered message list plus its trim configuration. One
// "turn" is a user message paired with its assistant reply; once a session
// holds more than MaxTurns turns the oldest pairs are dropped. A configured
// system prompt is pinned as the first message and never trimmed.
//
// Thread safety: Session itself is a plain value mutated by its owner. The
// shared map lives in Store, which hands out deep copies.
package session

import "strings"

// Role identifies the author of a message.
type Role string

// Valid message roles, serialized lowercase on the wire.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry. Immutable once appended except via
// trimming or removal.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Config controls per-session trimming.
type Config struct {
	// MaxTurns is the number of user/assistant pairs retained. Zero means
	// no non-system message survives an append.
	MaxTurns int

	// SystemPrompt, when non-empty, becomes the pinned first message.
	SystemPrompt string
}

// DefaultMaxTurns is applied when configuration names no turn limit.
const DefaultMaxTurns = 10

// DefaultConfig returns the trim configuration used for sessions created
// without an explicit one.
func DefaultConfig() Config {
	return Config{MaxTurns: DefaultMaxTurns}
}

// Session is a keyed conversation history.
type Session struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Config   Config    `json:"-"`
}

// New creates a session. A configured system prompt is seeded as the first
// message.
func New(id string, cfg Config) *Session {
	s := &Session{ID: id, Config: cfg}
	if cfg.SystemPrompt != "" {
		s.Messages = append(s.Messages, Message{Role: RoleSystem, Content: cfg.SystemPrompt})
	}
	return s
}

// AddUserMessage appends a user message and re-trims.
func (s *Session) AddUserMessage(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
	s.trim()
}

// AddAssistantMessage appends an assistant message and re-trims.
func (s *Session) AddAssistantMessage(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content})
	s.trim()
}

// Clear drops all messages except the system message, if any.
func (s *Session) Clear() {
	for _, m := range s.Messages {
		if m.Role == RoleSystem {
			s.Messages = []Message{m}
			return
		}
	}
	s.Messages = nil
}

// Clone returns a deep copy so callers can read and mutate snapshots
// without holding the store lock.
func (s *Session) Clone() *Session {
	c := &Session{ID: s.ID, Config: s.Config}
	if s.Messages != nil {
		c.Messages = make([]Message, len(s.Messages))
		copy(c.Messages, s.Messages)
	}
	return c
}

// trim enforces the turn limit. An odd trailing message belongs to the
// current, incomplete turn: integer division leaves it out of the turn
// count, so it is never removed before its pair exists.
func (s *Session) trim() {
	nonSystem := 0
	firstNonSystem := -1
	for i, m := range s.Messages {
		if m.Role == RoleSystem {
			continue
		}
		if firstNonSystem < 0 {
			firstNonSystem = i
		}
		nonSystem++
	}

	turns := nonSystem / 2
	if turns <= s.Config.MaxTurns || firstNonSystem < 0 {
		return
	}

	remove := (turns - s.Config.MaxTurns) * 2
	s.Messages = append(s.Messages[:firstNonSystem], s.Messages[firstNonSystem+remove:]...)
}

// Normalize strips a message down to the fields the server owns and
// lowercases the role, dropping anything a client may have attached.
func Normalize(m Message) Message {
	return Message{Role: Role(strings.ToLower(string(m.Role))), Content: m.Content}
}
