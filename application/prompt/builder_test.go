package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/domain/chat"
	"github.com/longhornrumble/picasso/domain/tenant"
)

func TestBuild_IncludesHistoryTaggedByRole(t *testing.T) {
	b := NewBuilder()
	now := time.Now()
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "what are your hours?", Timestamp: now},
		{Role: chat.RoleAssistant, Content: "We are open 9 to 5.", Timestamp: now},
	}

	out := b.Build(nil, nil, history, "and on weekends?")

	assert.Contains(t, out, "User: what are your hours?")
	assert.Contains(t, out, "Assistant: We are open 9 to 5.")

	// Every prior message appears before the current question
	questionIdx := strings.LastIndex(out, "and on weekends?")
	for _, msg := range history {
		assert.Less(t, strings.Index(out, msg.Content), questionIdx)
	}
}

func TestBuild_NoHistorySection_WhenContextEmpty(t *testing.T) {
	b := NewBuilder()

	out := b.Build(nil, nil, nil, "hello")

	assert.NotContains(t, out, "Conversation so far")
	assert.Contains(t, out, "User: hello")
}

func TestBuild_IncludesPassages(t *testing.T) {
	b := NewBuilder()
	passages := []ports.Passage{
		{Content: "Our return policy allows 30 days.", Score: 0.9},
		{Content: "Shipping takes 3-5 business days.", Score: 0.7},
	}

	out := b.Build(nil, passages, nil, "can I return this?")

	assert.Contains(t, out, "Context:")
	assert.Contains(t, out, "Our return policy allows 30 days.")
	assert.Contains(t, out, "Shipping takes 3-5 business days.")
}

func TestBuild_NoContextSection_WithoutPassages(t *testing.T) {
	b := NewBuilder()

	out := b.Build(nil, nil, nil, "hello")

	assert.NotContains(t, out, "Context:")
}

func TestBuild_IncludesTonePrompt(t *testing.T) {
	b := NewBuilder()
	cfg := &tenant.Config{
		TenantID:   "tenant-a",
		TonePrompt: "Always respond cheerfully.",
	}

	out := b.Build(cfg, nil, nil, "hello")

	assert.Contains(t, out, "Always respond cheerfully.")
}

func TestBuild_EndsWithAssistantCue(t *testing.T) {
	b := NewBuilder()

	out := b.Build(nil, nil, nil, "hello")

	assert.True(t, strings.HasSuffix(out, "Assistant:"))
}
