// Package services contains the application services orchestrating the
// chat pipeline: tenant resolution, conversation turn coordination,
// knowledge-base retrieval and LLM invocation.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/application/prompt"
	"github.com/longhornrumble/picasso/domain/chat"
	"github.com/longhornrumble/picasso/domain/tenant"
	"github.com/longhornrumble/picasso/pkg/auth"
	"github.com/longhornrumble/picasso/pkg/common"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/observability"
)

// FallbackResponse is returned when the LLM or its upstream fails. A chat
// user always gets a response; upstream failures degrade, they do not 500.
const FallbackResponse = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// maxTurnRetries bounds the compare-and-swap retry loop for a turn write.
const maxTurnRetries = 3

// retrievalTopK is how many knowledge-base passages are requested per turn.
const retrievalTopK = 5

// ChatRequest is a validated inbound chat message.
type ChatRequest struct {
	TenantHash string
	UserInput  string
	SessionID  string
	// Turn is the client's advisory view of the conversation turn. The
	// store's conditional write is the real arbiter; this only detects
	// obviously stale clients early.
	Turn *int
	// StateToken authenticates follow-up requests without a session-store
	// lookup.
	StateToken string
	// History carries client-supplied conversation context, used only to
	// seed a session the store has never seen.
	History []chat.Message
}

// ChatResult is the outcome of a completed turn.
type ChatResult struct {
	Content    string
	SessionID  string
	TenantID   string
	Turn       int
	StateToken string
	Degraded   bool
}

// StreamEvent is one frame of a streamed response.
type StreamEvent struct {
	Type    string // "start", "text", "error", "done"
	Content string
}

// ChatService coordinates a conversation turn end to end.
type ChatService struct {
	conversations ports.ConversationRepository
	resolver      *TenantResolver
	kb            ports.KnowledgeBase
	model         ports.ModelInvoker
	prompts       *prompt.Builder
	tokens        *auth.StateTokenManager
	events        ports.EventPublisher
	metrics       *observability.Metrics
	logger        *zap.Logger

	now func() time.Time
}

// NewChatService creates a chat service
func NewChatService(
	conversations ports.ConversationRepository,
	resolver *TenantResolver,
	kb ports.KnowledgeBase,
	model ports.ModelInvoker,
	tokens *auth.StateTokenManager,
	events ports.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		resolver:      resolver,
		kb:            kb,
		model:         model,
		prompts:       prompt.NewBuilder(),
		tokens:        tokens,
		events:        events,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// HandleMessage processes one buffered chat turn.
func (s *ChatService) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	started := s.now()

	tenantID, cfg, err := s.authorize(ctx, &req)
	if err != nil {
		return nil, err
	}
	ctx = common.WithTenantID(ctx, tenantID)
	ctx = common.WithSessionID(ctx, req.SessionID)

	conv, err := s.loadConversation(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	answer, degraded := s.generate(ctx, cfg, conv.Messages, req.UserInput)

	result, err := s.commitTurn(ctx, tenantID, req, conv, answer, degraded)
	if err != nil {
		return nil, err
	}

	s.finishTurn(ctx, result, s.now().Sub(started), false)
	return result, nil
}

// StreamMessage processes one chat turn, delivering the answer as a
// sequence of events. The committed conversation state is identical to the
// buffered path.
func (s *ChatService) StreamMessage(ctx context.Context, req ChatRequest, onEvent func(StreamEvent) error) (*ChatResult, error) {
	started := s.now()

	tenantID, cfg, err := s.authorize(ctx, &req)
	if err != nil {
		return nil, err
	}
	ctx = common.WithTenantID(ctx, tenantID)
	ctx = common.WithSessionID(ctx, req.SessionID)

	conv, err := s.loadConversation(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	if err := onEvent(StreamEvent{Type: "start"}); err != nil {
		return nil, err
	}

	passages := s.retrieve(ctx, cfg, req.UserInput)
	promptText := s.prompts.Build(cfg, passages, conv.Messages, req.UserInput)

	var full []byte
	degraded := false
	streamErr := s.model.InvokeStream(ctx, ports.ModelRequest{
		ModelID:   cfg.ModelID,
		Prompt:    promptText,
		MaxTokens: cfg.MaxTokens,
	}, func(text string) error {
		full = append(full, text...)
		return onEvent(StreamEvent{Type: "text", Content: text})
	})

	if streamErr != nil {
		s.logger.Error("model stream failed",
			zap.String("tenant_id", tenantID),
			zap.Error(streamErr),
		)
		degraded = true
		if len(full) == 0 {
			// Nothing was delivered yet: degrade to the canned apology so
			// the user still gets a response.
			full = []byte(FallbackResponse)
			if err := onEvent(StreamEvent{Type: "text", Content: FallbackResponse}); err != nil {
				return nil, err
			}
		} else {
			if err := onEvent(StreamEvent{Type: "error", Content: "response interrupted"}); err != nil {
				return nil, err
			}
		}
	}

	result, err := s.commitTurn(ctx, tenantID, req, conv, string(full), degraded)
	if err != nil {
		return nil, err
	}

	s.finishTurn(ctx, result, s.now().Sub(started), true)
	return result, nil
}

// authorize resolves the tenant hash, loads the tenant config, and checks
// the state token against the resolved tenant. Fails closed on any
// mismatch.
func (s *ChatService) authorize(ctx context.Context, req *ChatRequest) (string, *tenant.Config, error) {
	if req.UserInput == "" {
		return "", nil, appErrors.NewValidationError("user_input is required").
			WithCode(appErrors.CodeInvalidRequest)
	}

	tenantID, err := s.resolver.Resolve(ctx, req.TenantHash)
	if err != nil {
		return "", nil, err
	}

	if req.StateToken != "" {
		claims, err := s.tokens.Validate(req.StateToken)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return "", nil, appErrors.NewSessionExpiredError()
			}
			return "", nil, appErrors.NewUnauthorizedError("invalid state token").WithCause(err)
		}
		if claims.TenantID != tenantID {
			return "", nil, appErrors.NewTenantMismatchError()
		}
		if req.SessionID == "" {
			req.SessionID = claims.SessionID
		} else if claims.SessionID != req.SessionID {
			return "", nil, appErrors.NewTenantMismatchError()
		}
		if req.Turn == nil {
			turn := claims.Turn
			req.Turn = &turn
		}
	}

	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	cfg, err := s.resolver.LoadConfig(ctx, tenantID)
	if err != nil {
		return "", nil, err
	}

	return tenantID, cfg, nil
}

// loadConversation reads the session state, seeding a fresh one from
// client-supplied context when the store has never seen the session.
func (s *ChatService) loadConversation(ctx context.Context, tenantID string, req ChatRequest) (*chat.Conversation, error) {
	conv, err := s.conversations.Get(ctx, tenantID, req.SessionID)
	if err != nil {
		if !appErrors.IsNotFound(err) {
			return nil, appErrors.Wrap(err, "conversation read failed")
		}
		conv = chat.NewConversation(tenantID, req.SessionID)
		for _, msg := range req.History {
			conv.Append(msg.Role, msg.Content, msg.Timestamp)
		}
	}

	// Advisory staleness check: a client presenting an older turn than the
	// store holds is behind and must re-read before writing.
	if req.Turn != nil && *req.Turn < conv.Turn {
		return nil, appErrors.NewTurnConflictError(req.SessionID, *req.Turn).
			WithDetails(map[string]interface{}{"current_turn": conv.Turn})
	}

	return conv, nil
}

// generate runs retrieval and the LLM call for the buffered path.
func (s *ChatService) generate(ctx context.Context, cfg *tenant.Config, history []chat.Message, userInput string) (string, bool) {
	passages := s.retrieve(ctx, cfg, userInput)
	promptText := s.prompts.Build(cfg, passages, history, userInput)

	answer, err := s.model.Invoke(ctx, ports.ModelRequest{
		ModelID:   cfg.ModelID,
		Prompt:    promptText,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		s.logger.Error("model invocation failed",
			zap.String("model_id", cfg.ModelID),
			zap.Error(err),
		)
		return FallbackResponse, true
	}
	return answer, false
}

// retrieve fetches knowledge-base passages, degrading to none on failure.
func (s *ChatService) retrieve(ctx context.Context, cfg *tenant.Config, query string) []ports.Passage {
	if cfg.KnowledgeBaseID == "" {
		return nil
	}
	passages, err := s.kb.Retrieve(ctx, cfg.KnowledgeBaseID, query, retrievalTopK)
	if err != nil {
		s.logger.Warn("knowledge base retrieval failed",
			zap.String("knowledge_base_id", cfg.KnowledgeBaseID),
			zap.Error(err),
		)
		return nil
	}
	return passages
}

// commitTurn appends the exchange and writes the state with a
// compare-and-swap on the turn counter, retrying on conflict with a fresh
// read. The store's conditional write is the arbiter; there are no locks.
func (s *ChatService) commitTurn(ctx context.Context, tenantID string, req ChatRequest, conv *chat.Conversation, answer string, degraded bool) (*ChatResult, error) {
	now := s.now()

	for attempt := 0; attempt < maxTurnRetries; attempt++ {
		expected := conv.Turn
		conv.Append(chat.RoleUser, req.UserInput, now)
		conv.Append(chat.RoleAssistant, answer, now)
		conv.Turn = expected + 1
		conv.UpdatedAt = now

		err := s.conversations.Save(ctx, conv, expected)
		if err == nil {
			return s.buildResult(tenantID, req.SessionID, conv.Turn, answer, degraded)
		}
		if !appErrors.IsConflict(err) {
			return nil, appErrors.Wrap(err, "conversation write failed")
		}

		s.metrics.RecordTurnConflict(ctx, tenantID)
		s.logger.Warn("turn conflict, re-reading state",
			zap.String("session_id", req.SessionID),
			zap.Int("expected_turn", expected),
			zap.Int("attempt", attempt+1),
		)

		fresh, readErr := s.conversations.Get(ctx, tenantID, req.SessionID)
		if readErr != nil {
			return nil, appErrors.Wrap(readErr, "conversation re-read failed")
		}
		conv = fresh
	}

	return nil, appErrors.NewTurnConflictError(req.SessionID, conv.Turn)
}

func (s *ChatService) buildResult(tenantID, sessionID string, turn int, answer string, degraded bool) (*ChatResult, error) {
	token, err := s.tokens.Issue(sessionID, tenantID, turn)
	if err != nil {
		return nil, appErrors.Wrap(err, "state token issuance failed")
	}
	return &ChatResult{
		Content:    answer,
		SessionID:  sessionID,
		TenantID:   tenantID,
		Turn:       turn,
		StateToken: token,
		Degraded:   degraded,
	}, nil
}

// finishTurn publishes the turn event and metrics, both best-effort.
func (s *ChatService) finishTurn(ctx context.Context, result *ChatResult, latency time.Duration, streamed bool) {
	s.metrics.RecordTurn(ctx, result.TenantID, latency, result.Degraded)

	if err := s.events.PublishTurnCompleted(ctx, ports.TurnEvent{
		TenantID:  result.TenantID,
		SessionID: result.SessionID,
		Turn:      result.Turn,
		LatencyMS: latency.Milliseconds(),
		Degraded:  result.Degraded,
		Streamed:  streamed,
	}); err != nil {
		s.logger.Warn("turn event publish failed", zap.Error(err))
	}
}
