// Package tenant models the tenant identity and configuration records.
// Clients only ever see the opaque tenant hash; the real tenant ID and its
// configuration are resolved server-side.
package tenant

import "regexp"

// Mapping resolves an opaque public hash to a tenant identity. Mappings
// are immutable once created.
type Mapping struct {
	TenantHash string `json:"tenant_hash"`
	TenantID   string `json:"tenant_id"`
	Host       string `json:"host,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Path       string `json:"path,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Config is the per-tenant behavior configuration.
type Config struct {
	TenantID        string `json:"tenant_id"`
	ModelID         string `json:"model_id"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
	TonePrompt      string `json:"tone_prompt,omitempty"`
	MaxTokens       int    `json:"max_tokens,omitempty"`
}

// hashPattern matches the opaque identifiers handed out to clients:
// lowercase hex, 16 to 64 characters.
var hashPattern = regexp.MustCompile(`^[a-f0-9]{16,64}$`)

// IsValidHash reports whether s is shaped like a tenant hash. Used to
// reject malformed input before any store lookup.
func IsValidHash(s string) bool {
	return hashPattern.MatchString(s)
}
