package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/domain/chat"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/utils"
)

// ConversationRepository implements ports.ConversationRepository using
// DynamoDB. Writes are conditional on the stored turn counter so
// concurrent turns for the same session cannot silently overwrite each
// other.
type ConversationRepository struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(client *dynamodb.Client, tableName string, ttl time.Duration, logger *zap.Logger) ports.ConversationRepository {
	return &ConversationRepository{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
	}
}

// messageItem represents one stored message
type messageItem struct {
	Role      string `dynamodbav:"Role"`
	Content   string `dynamodbav:"Content"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// conversationItem represents the DynamoDB item structure for a session
type conversationItem struct {
	PK        string        `dynamodbav:"PK"` // TENANT#<tenant_id>#SESSION#<session_id>
	SK        string        `dynamodbav:"SK"` // STATE
	TenantID  string        `dynamodbav:"TenantID"`
	SessionID string        `dynamodbav:"SessionID"`
	Turn      int           `dynamodbav:"Turn"`
	Messages  []messageItem `dynamodbav:"Messages"`
	UpdatedAt string        `dynamodbav:"UpdatedAt"`
	TTL       int64         `dynamodbav:"TTL,omitempty"` // Unix timestamp for DynamoDB TTL
}

func conversationKey(tenantID, sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("TENANT#%s#SESSION#%s", tenantID, sessionID)},
		"SK": &types.AttributeValueMemberS{Value: "STATE"},
	}
}

// Get loads the conversation state for a session
func (r *ConversationRepository) Get(ctx context.Context, tenantID, sessionID string) (*chat.Conversation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            conversationKey(tenantID, sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFoundError("conversation")
	}

	var item conversationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}

	return itemToConversation(&item)
}

// Save writes the conversation, conditioned on the stored turn still
// matching expectedTurn. A first write (expectedTurn 0) also accepts a
// missing item. The condition failing is reported as a conflict.
func (r *ConversationRepository) Save(ctx context.Context, conv *chat.Conversation, expectedTurn int) error {
	item := conversationToItem(conv)
	if r.ttl > 0 {
		item.TTL = time.Now().Add(r.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	cond := expression.Name("Turn").Equal(expression.Value(expectedTurn))
	if expectedTurn == 0 {
		cond = expression.AttributeNotExists(expression.Name("PK")).Or(cond)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.logger.Debug("conversation write lost the race",
				zap.String("session_id", conv.SessionID),
				zap.Int("expected_turn", expectedTurn),
			)
			return appErrors.NewTurnConflictError(conv.SessionID, expectedTurn)
		}
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	return nil
}

// Delete removes the conversation state for a session
func (r *ConversationRepository) Delete(ctx context.Context, tenantID, sessionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       conversationKey(tenantID, sessionID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func conversationToItem(conv *chat.Conversation) *conversationItem {
	messages := make([]messageItem, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		messages = append(messages, messageItem{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp.Format(time.RFC3339),
		})
	}
	return &conversationItem{
		PK:        fmt.Sprintf("TENANT#%s#SESSION#%s", conv.TenantID, conv.SessionID),
		SK:        "STATE",
		TenantID:  conv.TenantID,
		SessionID: conv.SessionID,
		Turn:      conv.Turn,
		Messages:  messages,
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

func itemToConversation(item *conversationItem) (*chat.Conversation, error) {
	messages := make([]chat.Message, 0, len(item.Messages))
	for _, m := range item.Messages {
		ts, err := utils.ParseRFC3339(m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp: %w", err)
		}
		messages = append(messages, chat.Message{
			Role:      chat.Role(m.Role),
			Content:   m.Content,
			Timestamp: ts,
		})
	}

	updatedAt, err := utils.ParseRFC3339(item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse conversation timestamp: %w", err)
	}

	return &chat.Conversation{
		TenantID:  item.TenantID,
		SessionID: item.SessionID,
		Turn:      item.Turn,
		Messages:  messages,
		UpdatedAt: updatedAt,
	}, nil
}
