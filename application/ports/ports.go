// Package ports defines the interfaces between the application services
// and the infrastructure adapters that back them.
package ports

import (
	"context"

	"github.com/longhornrumble/picasso/domain/chat"
	"github.com/longhornrumble/picasso/domain/tenant"
)

// ConversationRepository persists per-session turn state. Save is a
// compare-and-swap: it succeeds only if the stored turn still equals
// expectedTurn (the value the caller read), otherwise it returns a
// conflict error and the caller must re-read and retry.
type ConversationRepository interface {
	Get(ctx context.Context, tenantID, sessionID string) (*chat.Conversation, error)
	Save(ctx context.Context, conv *chat.Conversation, expectedTurn int) error
	Delete(ctx context.Context, tenantID, sessionID string) error
}

// TenantStore reads tenant identity and configuration blobs from the
// object store.
type TenantStore interface {
	GetMapping(ctx context.Context, tenantHash string) (*tenant.Mapping, error)
	GetConfig(ctx context.Context, tenantID string) (*tenant.Config, error)
	// ListMappingHashes returns every known tenant hash. Reverse lookups
	// scan these one by one; O(n) is acceptable at current data volume.
	ListMappingHashes(ctx context.Context) ([]string, error)
}

// Passage is a ranked text snippet returned by the knowledge base.
type Passage struct {
	Content string
	Score   float64
	Source  string
}

// KnowledgeBase retrieves context passages for a query.
type KnowledgeBase interface {
	Retrieve(ctx context.Context, knowledgeBaseID, query string, topK int) ([]Passage, error)
}

// ModelRequest is a prepared LLM invocation.
type ModelRequest struct {
	ModelID   string
	Prompt    string
	MaxTokens int
}

// ModelInvoker calls the managed LLM. InvokeStream delivers text chunks to
// onChunk as they arrive and returns once the stream is complete.
type ModelInvoker interface {
	Invoke(ctx context.Context, req ModelRequest) (string, error)
	InvokeStream(ctx context.Context, req ModelRequest, onChunk func(text string) error) error
}

// TurnEvent describes a completed conversation turn for downstream
// consumers.
type TurnEvent struct {
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
	LatencyMS int64  `json:"latency_ms"`
	Degraded  bool   `json:"degraded"`
	Streamed  bool   `json:"streamed"`
}

// EventPublisher publishes turn events. Publishing is best-effort.
type EventPublisher interface {
	PublishTurnCompleted(ctx context.Context, event TurnEvent) error
}
