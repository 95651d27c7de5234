// Package di wires the application together. The explicit Container makes
// every piece of shared warm state (caches, limiters, clients) visible in
// one place instead of hiding it in package globals.
package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/application/services"
	"github.com/longhornrumble/picasso/infrastructure/config"
	"github.com/longhornrumble/picasso/pkg/auth"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Conversations ports.ConversationRepository
	TenantStore   ports.TenantStore
	Model         ports.ModelInvoker
	KnowledgeBase ports.KnowledgeBase
	Events        ports.EventPublisher
	Resolver      *services.TenantResolver
	ChatService   *services.ChatService
	StateTokens   *auth.StateTokenManager
	RateLimiter   *auth.EndpointRateLimiter
	Distributed   *auth.DistributedRateLimiter
	IPLimiter     *auth.IPRateLimiter
	Metrics       *observability.Metrics
	Tracer        *observability.Tracer
	ErrorHandler  *appErrors.ErrorHandler
	Handler       http.Handler
}

// Shutdown flushes anything buffered before the process exits.
func (c *Container) Shutdown() {
	if c.Logger != nil {
		c.Logger.Sync()
	}
}
