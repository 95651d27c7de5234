package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/domain/tenant"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/cache"
)

// TenantResolver maps opaque tenant hashes to tenant identity and
// configuration via a read-through cache over the object store. A hash
// that does not resolve is a hard negative: no fallback configuration is
// ever substituted, tenant isolation depends on it.
type TenantResolver struct {
	store    ports.TenantStore
	mappings *cache.BoundedCache // tenant_hash -> tenant_id
	configs  *cache.BoundedCache // tenant_id -> *tenant.Config
	reverse  *cache.BoundedCache // tenant_id -> tenant_hash
	logger   *zap.Logger
}

// Cache sizing. Mappings are tiny; the bound exists to keep abandoned
// hashes from accumulating across warm invocations.
const (
	tenantCacheCapacity = 256
	tenantCacheTTL      = 5 * time.Minute
)

// NewTenantResolver creates a tenant resolver
func NewTenantResolver(store ports.TenantStore, logger *zap.Logger) *TenantResolver {
	return &TenantResolver{
		store:    store,
		mappings: cache.NewBoundedCache(tenantCacheCapacity, tenantCacheTTL),
		configs:  cache.NewBoundedCache(tenantCacheCapacity, tenantCacheTTL),
		reverse:  cache.NewBoundedCache(tenantCacheCapacity, tenantCacheTTL),
		logger:   logger,
	}
}

// Resolve returns the tenant ID for an opaque hash.
func (r *TenantResolver) Resolve(ctx context.Context, tenantHash string) (string, error) {
	if !tenant.IsValidHash(tenantHash) {
		return "", appErrors.NewValidationError("malformed tenant hash").
			WithCode(appErrors.CodeInvalidRequest)
	}

	if cached, ok := r.mappings.Get(tenantHash); ok {
		return cached.(string), nil
	}

	mapping, err := r.store.GetMapping(ctx, tenantHash)
	if err != nil {
		if appErrors.IsNotFound(err) {
			r.logger.Warn("tenant hash did not resolve", zap.String("tenant_hash", tenantHash))
			return "", appErrors.NewTenantNotFoundError(tenantHash)
		}
		return "", appErrors.Wrap(err, "tenant mapping lookup failed")
	}

	r.mappings.Set(tenantHash, mapping.TenantID)
	r.reverse.Set(mapping.TenantID, tenantHash)
	return mapping.TenantID, nil
}

// LoadConfig returns the behavior configuration for a resolved tenant.
// Missing config is treated the same as a missing mapping: reject, never
// default.
func (r *TenantResolver) LoadConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	if cached, ok := r.configs.Get(tenantID); ok {
		return cached.(*tenant.Config), nil
	}

	cfg, err := r.store.GetConfig(ctx, tenantID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, appErrors.NewTenantNotFoundError("").
				WithDetails(map[string]interface{}{"tenant_id": tenantID})
		}
		return nil, appErrors.Wrap(err, "tenant config lookup failed")
	}

	r.configs.Set(tenantID, cfg)
	return cfg, nil
}

// ReverseLookup finds the public hash for a tenant ID. When not
// cache-resident this scans every mapping in the store, O(n) worst case.
func (r *TenantResolver) ReverseLookup(ctx context.Context, tenantID string) (string, error) {
	if cached, ok := r.reverse.Get(tenantID); ok {
		return cached.(string), nil
	}

	hashes, err := r.store.ListMappingHashes(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, "tenant mapping scan failed")
	}

	for _, hash := range hashes {
		mapping, err := r.store.GetMapping(ctx, hash)
		if err != nil {
			if appErrors.IsNotFound(err) {
				continue
			}
			return "", appErrors.Wrap(err, "tenant mapping scan failed")
		}
		r.mappings.Set(mapping.TenantHash, mapping.TenantID)
		r.reverse.Set(mapping.TenantID, mapping.TenantHash)
		if mapping.TenantID == tenantID {
			return mapping.TenantHash, nil
		}
	}

	return "", appErrors.NewNotFoundError("tenant mapping")
}

// ClearCache drops all cached mappings and configs.
func (r *TenantResolver) ClearCache() {
	r.mappings.Clear()
	r.configs.Clear()
	r.reverse.Clear()
}
