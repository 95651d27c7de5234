package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsbedrockagent "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	awsbedrock "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/application/services"
	"github.com/longhornrumble/picasso/infrastructure/bedrock"
	"github.com/longhornrumble/picasso/infrastructure/config"
	"github.com/longhornrumble/picasso/infrastructure/messaging/eventbridge"
	"github.com/longhornrumble/picasso/infrastructure/persistence/dynamodb"
	"github.com/longhornrumble/picasso/infrastructure/persistence/s3"
	"github.com/longhornrumble/picasso/interfaces/http/rest"
	"github.com/longhornrumble/picasso/pkg/auth"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// ProvideBedrockRuntimeClient creates a Bedrock runtime client
func ProvideBedrockRuntimeClient(awsCfg aws.Config) *awsbedrock.Client {
	return awsbedrock.NewFromConfig(awsCfg)
}

// ProvideBedrockAgentClient creates a Bedrock agent runtime client
func ProvideBedrockAgentClient(awsCfg aws.Config) *awsbedrockagent.Client {
	return awsbedrockagent.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideConversationRepository creates the conversation state repository
func ProvideConversationRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ConversationRepository {
	return dynamodb.NewConversationRepository(client, cfg.ConversationsTable, cfg.ConversationTTL, logger)
}

// ProvideTenantStore creates the tenant mapping store
func ProvideTenantStore(client *awss3.Client, cfg *config.Config, logger *zap.Logger) ports.TenantStore {
	return s3.NewTenantStore(client, cfg.MappingBucket, logger)
}

// ProvideModelInvoker creates the Bedrock model adapter
func ProvideModelInvoker(client *awsbedrock.Client, tracer *observability.Tracer, logger *zap.Logger) ports.ModelInvoker {
	return bedrock.NewRuntime(client, tracer, logger)
}

// ProvideKnowledgeBase creates the Bedrock knowledge base adapter
func ProvideKnowledgeBase(client *awsbedrockagent.Client, tracer *observability.Tracer, logger *zap.Logger) ports.KnowledgeBase {
	return bedrock.NewKnowledgeBase(client, tracer, logger)
}

// ProvideEventPublisher creates the turn event publisher
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("Picasso/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		// A nil client turns every emission into a no-op.
		return observability.NewMetrics(namespace, nil, logger)
	}
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideStateTokenManager creates the state token manager
func ProvideStateTokenManager(cfg *config.Config) (*auth.StateTokenManager, error) {
	secret := cfg.StateTokenSecret
	if secret == "" {
		// Development fallback; production rejects an empty secret at
		// config validation.
		secret = "picasso-dev-secret"
	}
	return auth.NewStateTokenManager(auth.StateTokenConfig{
		SecretKey: secret,
		Issuer:    cfg.StateTokenIssuer,
		TTL:       cfg.StateTokenTTL,
	})
}

// ProvideEndpointRateLimiter creates the per-environment rate limiter
func ProvideEndpointRateLimiter(cfg *config.Config) *auth.EndpointRateLimiter {
	return auth.NewEndpointRateLimiter(cfg.RateLimitQuota, cfg.RateLimitWindow)
}

// ProvideIPRateLimiter creates the coarse per-IP flood guard
func ProvideIPRateLimiter(cfg *config.Config) *auth.IPRateLimiter {
	return auth.NewIPRateLimiter(cfg.IPFloodQuota)
}

// ProvideDistributedRateLimiter creates the cross-environment rate limiter
func ProvideDistributedRateLimiter(client *awsdynamodb.Client, cfg *config.Config) *auth.DistributedRateLimiter {
	return auth.NewDistributedRateLimiter(client, cfg.ConversationsTable, cfg.RateLimitQuota, cfg.RateLimitWindow)
}

// ProvideTenantResolver creates the tenant resolver
func ProvideTenantResolver(store ports.TenantStore, logger *zap.Logger) *services.TenantResolver {
	return services.NewTenantResolver(store, logger)
}

// ProvideChatService creates the chat service
func ProvideChatService(
	conversations ports.ConversationRepository,
	resolver *services.TenantResolver,
	kb ports.KnowledgeBase,
	model ports.ModelInvoker,
	tokens *auth.StateTokenManager,
	events ports.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.ChatService {
	return services.NewChatService(conversations, resolver, kb, model, tokens, events, metrics, logger)
}

// ProvideTracer creates the request tracer, nil when tracing is off
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer("picasso")
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *appErrors.ErrorHandler {
	return appErrors.NewErrorHandler(logger, !cfg.IsProduction())
}

// ProvideHandler builds the HTTP handler tree
func ProvideHandler(
	chatService *services.ChatService,
	rateLimiter *auth.EndpointRateLimiter,
	distributed *auth.DistributedRateLimiter,
	ipLimiter *auth.IPRateLimiter,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	errorHandler *appErrors.ErrorHandler,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(chatService, rateLimiter, distributed, ipLimiter, metrics, tracer, errorHandler, cfg.EnableCORS, logger).Setup()
}
