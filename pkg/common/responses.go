package common

import (
	"encoding/json"
	"net/http"
)

// ChatResponse is the success envelope returned by the chat endpoints.
type ChatResponse struct {
	Type      string                 `json:"type"`
	Content   string                 `json:"content"`
	SessionID string                 `json:"session_id"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// NewTextResponse builds the standard text chat response.
func NewTextResponse(content, sessionID string, context map[string]interface{}) ChatResponse {
	return ChatResponse{
		Type:      "text",
		Content:   content,
		SessionID: sessionID,
		Context:   context,
	}
}

// RespondJSON sends a JSON response with the given status
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError sends the error envelope used across all endpoints
func RespondError(w http.ResponseWriter, status int, errMsg, details string) {
	body := map[string]interface{}{
		"error":       errMsg,
		"status_code": status,
	}
	if details != "" {
		body["details"] = details
	}
	RespondJSON(w, status, body)
}

// RespondRateLimited sends the stable 429 rejection body. Clients and tests
// match this body exactly, so it carries nothing else.
func RespondRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error": "RATE_LIMITED"}`))
}

// ExtractRequestID extracts the request ID from the request
func ExtractRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Amzn-Trace-Id"); id != "" {
		return id
	}

	if id, ok := GetRequestID(r.Context()); ok {
		return id
	}

	return ""
}

// ParseJSONBody parses a JSON request body with a size limit
func ParseJSONBody(r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return err
	}

	return nil
}
