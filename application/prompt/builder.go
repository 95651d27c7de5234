// Package prompt assembles LLM prompts from tenant configuration,
// retrieved knowledge-base passages and conversation history.
package prompt

import (
	"strings"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/domain/chat"
	"github.com/longhornrumble/picasso/domain/tenant"
)

const defaultInstructions = "You are a helpful assistant answering questions on behalf of this organization. " +
	"Answer using the provided context when it is relevant. If you do not know the answer, say so plainly."

// Builder is a pure function over its inputs; it holds no state.
type Builder struct{}

// NewBuilder creates a prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the full prompt. Prior messages appear tagged by role
// before the current question; when there is no history the section is
// omitted entirely. Same for knowledge-base context.
func (b *Builder) Build(cfg *tenant.Config, passages []ports.Passage, history []chat.Message, userInput string) string {
	var sb strings.Builder

	sb.WriteString(defaultInstructions)
	if cfg != nil && cfg.TonePrompt != "" {
		sb.WriteString("\n\n")
		sb.WriteString(cfg.TonePrompt)
	}

	if len(passages) > 0 {
		sb.WriteString("\n\nContext:\n")
		for _, p := range passages {
			sb.WriteString("- ")
			sb.WriteString(strings.TrimSpace(p.Content))
			sb.WriteString("\n")
		}
	}

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, msg := range history {
			sb.WriteString(roleTag(msg.Role))
			sb.WriteString(": ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nUser: ")
	sb.WriteString(userInput)
	sb.WriteString("\nAssistant:")

	return sb.String()
}

func roleTag(role chat.Role) string {
	switch role {
	case chat.RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}
