// Package chat holds the conversation state model. A conversation advances
// through monotonically increasing turns; concurrent writers for the same
// session are arbitrated by a compare-and-swap on the turn counter at the
// persistence layer.
package chat

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxRecentMessages bounds the history kept with the conversation state.
// Older messages fall off; the full transcript is not this system's
// responsibility.
const MaxRecentMessages = 10

// Message is a single utterance in a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-session turn state. Turn is the optimistic
// concurrency token: a writer must present the turn it last observed, and
// the store rejects the write when the stored value differs.
type Conversation struct {
	SessionID string
	TenantID  string
	Turn      int
	Messages  []Message
	UpdatedAt time.Time
}

// NewConversation creates the state for a fresh session at turn zero.
func NewConversation(tenantID, sessionID string) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		TenantID:  tenantID,
		Turn:      0,
		Messages:  []Message{},
	}
}

// Append records a message, trimming history to the recent-message bound.
func (c *Conversation) Append(role Role, content string, at time.Time) {
	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
	if len(c.Messages) > MaxRecentMessages {
		c.Messages = c.Messages[len(c.Messages)-MaxRecentMessages:]
	}
}

// NextTurn is the turn number a successful write of this state will carry.
func (c *Conversation) NextTurn() int {
	return c.Turn + 1
}

// IsNew reports whether this session has never been persisted.
func (c *Conversation) IsNew() bool {
	return c.Turn == 0
}
