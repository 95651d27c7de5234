package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/domain/chat"
	"github.com/longhornrumble/picasso/domain/tenant"
	"github.com/longhornrumble/picasso/pkg/auth"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/observability"
)

const (
	testHash     = "abcdef0123456789abcdef0123456789"
	testTenantID = "tenant-a"
)

// MockConversationRepository mocks ports.ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Get(ctx context.Context, tenantID, sessionID string) (*chat.Conversation, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Save(ctx context.Context, conv *chat.Conversation, expectedTurn int) error {
	args := m.Called(ctx, conv, expectedTurn)
	return args.Error(0)
}

func (m *MockConversationRepository) Delete(ctx context.Context, tenantID, sessionID string) error {
	args := m.Called(ctx, tenantID, sessionID)
	return args.Error(0)
}

// MockKnowledgeBase mocks ports.KnowledgeBase
type MockKnowledgeBase struct {
	mock.Mock
}

func (m *MockKnowledgeBase) Retrieve(ctx context.Context, knowledgeBaseID, query string, topK int) ([]ports.Passage, error) {
	args := m.Called(ctx, knowledgeBaseID, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.Passage), args.Error(1)
}

// MockModelInvoker mocks ports.ModelInvoker
type MockModelInvoker struct {
	mock.Mock
}

func (m *MockModelInvoker) Invoke(ctx context.Context, req ports.ModelRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockModelInvoker) InvokeStream(ctx context.Context, req ports.ModelRequest, onChunk func(string) error) error {
	args := m.Called(ctx, req, onChunk)
	return args.Error(0)
}

// MockEventPublisher mocks ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTurnCompleted(ctx context.Context, event ports.TurnEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// fakeTenantStore is an in-memory ports.TenantStore
type fakeTenantStore struct {
	mappings map[string]*tenant.Mapping
	configs  map[string]*tenant.Config
}

func (f *fakeTenantStore) GetMapping(ctx context.Context, tenantHash string) (*tenant.Mapping, error) {
	if m, ok := f.mappings[tenantHash]; ok {
		return m, nil
	}
	return nil, appErrors.NewNotFoundError("tenant mapping")
}

func (f *fakeTenantStore) GetConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	if c, ok := f.configs[tenantID]; ok {
		return c, nil
	}
	return nil, appErrors.NewNotFoundError("tenant config")
}

func (f *fakeTenantStore) ListMappingHashes(ctx context.Context) ([]string, error) {
	hashes := make([]string, 0, len(f.mappings))
	for h := range f.mappings {
		hashes = append(hashes, h)
	}
	return hashes, nil
}

type serviceFixture struct {
	service *ChatService
	repo    *MockConversationRepository
	kb      *MockKnowledgeBase
	model   *MockModelInvoker
	events  *MockEventPublisher
	tokens  *auth.StateTokenManager
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := &fakeTenantStore{
		mappings: map[string]*tenant.Mapping{
			testHash: {TenantHash: testHash, TenantID: testTenantID},
		},
		configs: map[string]*tenant.Config{
			testTenantID: {
				TenantID:        testTenantID,
				ModelID:         "anthropic.claude-3-haiku",
				KnowledgeBaseID: "kb-123",
				TonePrompt:      "Be friendly.",
			},
		},
	}

	logger := zap.NewNop()
	tokens, err := auth.NewStateTokenManager(auth.StateTokenConfig{
		SecretKey: "test-secret",
		Issuer:    "picasso-test",
	})
	require.NoError(t, err)

	repo := new(MockConversationRepository)
	kb := new(MockKnowledgeBase)
	model := new(MockModelInvoker)
	events := new(MockEventPublisher)

	service := NewChatService(
		repo,
		NewTenantResolver(store, logger),
		kb,
		model,
		tokens,
		events,
		observability.NewMetrics("Picasso/test", nil, logger),
		logger,
	)

	return &serviceFixture{
		service: service,
		repo:    repo,
		kb:      kb,
		model:   model,
		events:  events,
		tokens:  tokens,
	}
}

func TestHandleMessage_NewSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.repo.On("Get", ctx, testTenantID, "sess-1").
		Return(nil, appErrors.NewNotFoundError("conversation"))
	f.kb.On("Retrieve", ctx, "kb-123", "hello", retrievalTopK).
		Return([]ports.Passage{{Content: "greeting guide"}}, nil)
	f.model.On("Invoke", ctx, mock.AnythingOfType("ports.ModelRequest")).
		Return("Hi! How can I help?", nil)
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 0).Return(nil)
	f.events.On("PublishTurnCompleted", ctx, mock.AnythingOfType("ports.TurnEvent")).Return(nil)

	result, err := f.service.HandleMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?", result.Content)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, 1, result.Turn)
	assert.False(t, result.Degraded)
	assert.NotEmpty(t, result.StateToken)

	claims, err := f.tokens.Validate(result.StateToken)
	require.NoError(t, err)
	assert.Equal(t, testTenantID, claims.TenantID)
	assert.Equal(t, 1, claims.Turn)

	f.repo.AssertExpectations(t)
	f.model.AssertExpectations(t)
}

func TestHandleMessage_UnknownTenant_HardNegative(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.HandleMessage(context.Background(), ChatRequest{
		TenantHash: "ffffffffffffffffffffffffffffffff",
		UserInput:  "hello",
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err), "unknown tenant must be a hard 404, never a default config")
	f.model.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestHandleMessage_MalformedHash(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.HandleMessage(context.Background(), ChatRequest{
		TenantHash: "not hex!",
		UserInput:  "hello",
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestHandleMessage_MissingInput(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.HandleMessage(context.Background(), ChatRequest{
		TenantHash: testHash,
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestHandleMessage_ModelFailureDegrades(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.repo.On("Get", ctx, testTenantID, "sess-1").
		Return(nil, appErrors.NewNotFoundError("conversation"))
	f.kb.On("Retrieve", ctx, "kb-123", "hello", retrievalTopK).
		Return(nil, errors.New("kb unavailable"))
	f.model.On("Invoke", ctx, mock.AnythingOfType("ports.ModelRequest")).
		Return("", errors.New("bedrock throttled"))
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 0).Return(nil)
	f.events.On("PublishTurnCompleted", ctx, mock.AnythingOfType("ports.TurnEvent")).Return(nil)

	result, err := f.service.HandleMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
	})

	require.NoError(t, err, "upstream failure must not surface as an error")
	assert.Equal(t, FallbackResponse, result.Content)
	assert.True(t, result.Degraded)
}

func TestHandleMessage_TurnConflictRetries(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	existing := chat.NewConversation(testTenantID, "sess-1")
	existing.Turn = 3

	refreshed := chat.NewConversation(testTenantID, "sess-1")
	refreshed.Turn = 4

	f.repo.On("Get", ctx, testTenantID, "sess-1").Return(existing, nil).Once()
	f.kb.On("Retrieve", ctx, "kb-123", "hello", retrievalTopK).Return(nil, nil)
	f.model.On("Invoke", ctx, mock.AnythingOfType("ports.ModelRequest")).
		Return("answer", nil)

	// First write loses the race, the re-read sees turn 4, second write wins
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 3).
		Return(appErrors.NewTurnConflictError("sess-1", 3)).Once()
	f.repo.On("Get", ctx, testTenantID, "sess-1").Return(refreshed, nil).Once()
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 4).Return(nil).Once()
	f.events.On("PublishTurnCompleted", ctx, mock.AnythingOfType("ports.TurnEvent")).Return(nil)

	result, err := f.service.HandleMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 5, result.Turn)
	f.repo.AssertExpectations(t)
}

func TestHandleMessage_TurnConflictExhausted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	conv := chat.NewConversation(testTenantID, "sess-1")
	f.repo.On("Get", ctx, testTenantID, "sess-1").Return(conv, nil)
	f.kb.On("Retrieve", ctx, "kb-123", "hello", retrievalTopK).Return(nil, nil)
	f.model.On("Invoke", ctx, mock.AnythingOfType("ports.ModelRequest")).
		Return("answer", nil)
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), mock.AnythingOfType("int")).
		Return(appErrors.NewTurnConflictError("sess-1", 0))

	_, err := f.service.HandleMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsConflict(err))
}

func TestHandleMessage_StaleClientTurn(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	existing := chat.NewConversation(testTenantID, "sess-1")
	existing.Turn = 5
	f.repo.On("Get", ctx, testTenantID, "sess-1").Return(existing, nil)

	staleTurn := 2
	_, err := f.service.HandleMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
		Turn:       &staleTurn,
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsConflict(err))
	f.model.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestHandleMessage_StateTokenTenantMismatch(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.tokens.Issue("sess-1", "other-tenant", 2)
	require.NoError(t, err)

	_, err = f.service.HandleMessage(context.Background(), ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
		StateToken: token,
	})

	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err), "cross-tenant token must fail closed")
}

func TestHandleMessage_SeedsHistoryForNewSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.repo.On("Get", ctx, testTenantID, "sess-1").
		Return(nil, appErrors.NewNotFoundError("conversation"))
	f.kb.On("Retrieve", ctx, "kb-123", "and weekends?", retrievalTopK).Return(nil, nil)

	var captured ports.ModelRequest
	f.model.On("Invoke", ctx, mock.AnythingOfType("ports.ModelRequest")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(ports.ModelRequest)
		}).
		Return("answer", nil)
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 0).Return(nil)
	f.events.On("PublishTurnCompleted", ctx, mock.AnythingOfType("ports.TurnEvent")).Return(nil)

	_, err := f.service.HandleMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "and weekends?",
		SessionID:  "sess-1",
		History: []chat.Message{
			{Role: chat.RoleUser, Content: "what are your hours?", Timestamp: time.Now()},
			{Role: chat.RoleAssistant, Content: "9 to 5 weekdays.", Timestamp: time.Now()},
		},
	})

	require.NoError(t, err)
	assert.Contains(t, captured.Prompt, "User: what are your hours?")
	assert.Contains(t, captured.Prompt, "Assistant: 9 to 5 weekdays.")
}

func TestStreamMessage_DeliversChunks(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.repo.On("Get", ctx, testTenantID, "sess-1").
		Return(nil, appErrors.NewNotFoundError("conversation"))
	f.kb.On("Retrieve", ctx, "kb-123", "hello", retrievalTopK).Return(nil, nil)
	f.model.On("InvokeStream", ctx, mock.AnythingOfType("ports.ModelRequest"), mock.Anything).
		Run(func(args mock.Arguments) {
			onChunk := args.Get(2).(func(string) error)
			onChunk("Hello")
			onChunk(" there!")
		}).
		Return(nil)
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 0).Return(nil)
	f.events.On("PublishTurnCompleted", ctx, mock.AnythingOfType("ports.TurnEvent")).Return(nil)

	var events []StreamEvent
	result, err := f.service.StreamMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
	}, func(e StreamEvent) error {
		events = append(events, e)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello there!", result.Content)
	require.Len(t, events, 3)
	assert.Equal(t, "start", events[0].Type)
	assert.Equal(t, "text", events[1].Type)
	assert.Equal(t, "Hello", events[1].Content)
	assert.Equal(t, " there!", events[2].Content)
}

func TestStreamMessage_FailureBeforeFirstChunkDegrades(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.repo.On("Get", ctx, testTenantID, "sess-1").
		Return(nil, appErrors.NewNotFoundError("conversation"))
	f.kb.On("Retrieve", ctx, "kb-123", "hello", retrievalTopK).Return(nil, nil)
	f.model.On("InvokeStream", ctx, mock.AnythingOfType("ports.ModelRequest"), mock.Anything).
		Return(errors.New("stream refused"))
	f.repo.On("Save", ctx, mock.AnythingOfType("*chat.Conversation"), 0).Return(nil)
	f.events.On("PublishTurnCompleted", ctx, mock.AnythingOfType("ports.TurnEvent")).Return(nil)

	var events []StreamEvent
	result, err := f.service.StreamMessage(ctx, ChatRequest{
		TenantHash: testHash,
		UserInput:  "hello",
		SessionID:  "sess-1",
	}, func(e StreamEvent) error {
		events = append(events, e)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, FallbackResponse, result.Content)

	var sawApology bool
	for _, e := range events {
		if e.Type == "text" && e.Content == FallbackResponse {
			sawApology = true
		}
	}
	assert.True(t, sawApology)
}
