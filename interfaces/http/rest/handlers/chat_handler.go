package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/services"
	"github.com/longhornrumble/picasso/domain/chat"
	"github.com/longhornrumble/picasso/pkg/common"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/utils"
)

const maxRequestBytes = 64 * 1024

// ChatHandler handles buffered chat requests
type ChatHandler struct {
	service *services.ChatService
	errors  *appErrors.ErrorHandler
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *services.ChatService, errors *appErrors.ErrorHandler, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		errors:  errors,
		logger:  logger,
	}
}

// chatMessage is one prior message supplied by the client
type chatMessage struct {
	// Older widget builds send "type" instead of "role".
	Role      string `json:"role,omitempty"`
	Type      string `json:"type,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// conversationContext carries client-side history for sessions the store
// has not seen yet
type conversationContext struct {
	Messages       []chatMessage `json:"messages,omitempty"`
	RecentMessages []chatMessage `json:"recentMessages,omitempty"`
}

// chatRequestBody is the wire shape of a chat request
type chatRequestBody struct {
	TenantHash string `json:"tenant_hash,omitempty" validate:"omitempty,hexadecimal"`
	UserInput  string `json:"user_input,omitempty" validate:"omitempty,max=4000"`
	// "message" is the legacy field name for user_input.
	Message string `json:"message,omitempty" validate:"omitempty,max=4000"`
	// Session ids end up inside compound storage keys, so they must stay
	// printable and must never carry the key separator.
	SessionID  string               `json:"session_id,omitempty" validate:"omitempty,max=128,printascii,excludesall=#"`
	Turn       *int                 `json:"turn,omitempty" validate:"omitempty,gte=0"`
	StateToken string               `json:"state_token,omitempty"`
	Context    *conversationContext `json:"conversation_context,omitempty"`
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.service.HandleMessage(r.Context(), req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.NewTextResponse(
		result.Content,
		result.SessionID,
		responseContext(result),
	))
}

// parseRequest normalizes the wire request into a service request.
func (h *ChatHandler) parseRequest(r *http.Request) (services.ChatRequest, error) {
	var body chatRequestBody
	if err := common.ParseJSONBody(r, &body, maxRequestBytes); err != nil {
		return services.ChatRequest{}, appErrors.NewValidationError("invalid request body").
			WithCode(appErrors.CodeInvalidRequest).
			WithCause(err)
	}

	if err := utils.ValidateStruct(body); err != nil {
		return services.ChatRequest{}, appErrors.NewValidationError(err.Error()).
			WithCode(appErrors.CodeInvalidRequest)
	}

	tenantHash := body.TenantHash
	if tenantHash == "" {
		tenantHash = r.URL.Query().Get("t")
	}

	userInput := body.UserInput
	if userInput == "" {
		userInput = body.Message
	}

	return services.ChatRequest{
		TenantHash: tenantHash,
		UserInput:  userInput,
		SessionID:  body.SessionID,
		Turn:       body.Turn,
		StateToken: body.StateToken,
		History:    normalizeHistory(body.Context),
	}, nil
}

// normalizeHistory converts client-supplied context into domain messages,
// tolerating both field spellings and skipping anything unrecognizable.
func normalizeHistory(cc *conversationContext) []chat.Message {
	if cc == nil {
		return nil
	}
	raw := cc.Messages
	if len(raw) == 0 {
		raw = cc.RecentMessages
	}

	history := make([]chat.Message, 0, len(raw))
	for _, m := range raw {
		role := m.Role
		if role == "" {
			role = m.Type
		}
		var parsed chat.Role
		switch role {
		case "user", "human":
			parsed = chat.RoleUser
		case "assistant", "bot":
			parsed = chat.RoleAssistant
		default:
			continue
		}
		if m.Content == "" {
			continue
		}

		ts := time.Now()
		if m.Timestamp != "" {
			if t, err := utils.ParseRFC3339(m.Timestamp); err == nil {
				ts = t
			}
		}
		history = append(history, chat.Message{Role: parsed, Content: m.Content, Timestamp: ts})
	}
	return history
}

// responseContext builds the context block clients echo back next turn.
func responseContext(result *services.ChatResult) map[string]interface{} {
	ctx := map[string]interface{}{
		"turn":        result.Turn,
		"state_token": result.StateToken,
	}
	if result.Degraded {
		ctx["degraded"] = true
	}
	return ctx
}
