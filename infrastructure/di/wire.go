//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/longhornrumble/picasso/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideS3Client,
	ProvideBedrockRuntimeClient,
	ProvideBedrockAgentClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideConversationRepository,
	ProvideTenantStore,
	ProvideModelInvoker,
	ProvideKnowledgeBase,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideStateTokenManager,
	ProvideEndpointRateLimiter,
	ProvideIPRateLimiter,
	ProvideDistributedRateLimiter,
	ProvideTenantResolver,
	ProvideChatService,
	ProvideTracer,
	ProvideErrorHandler,
	ProvideHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
