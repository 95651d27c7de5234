package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/domain/tenant"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
)

// countingTenantStore wraps fakeTenantStore to observe read traffic.
type countingTenantStore struct {
	fakeTenantStore
	mappingCalls int
	configCalls  int
	listCalls    int
}

func (c *countingTenantStore) GetMapping(ctx context.Context, tenantHash string) (*tenant.Mapping, error) {
	c.mappingCalls++
	return c.fakeTenantStore.GetMapping(ctx, tenantHash)
}

func (c *countingTenantStore) GetConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	c.configCalls++
	return c.fakeTenantStore.GetConfig(ctx, tenantID)
}

func (c *countingTenantStore) ListMappingHashes(ctx context.Context) ([]string, error) {
	c.listCalls++
	return c.fakeTenantStore.ListMappingHashes(ctx)
}

func newCountingStore() *countingTenantStore {
	return &countingTenantStore{
		fakeTenantStore: fakeTenantStore{
			mappings: map[string]*tenant.Mapping{
				testHash: {TenantHash: testHash, TenantID: testTenantID},
			},
			configs: map[string]*tenant.Config{
				testTenantID: {TenantID: testTenantID, ModelID: "anthropic.claude-3-haiku"},
			},
		},
	}
}

func TestTenantResolver_Resolve(t *testing.T) {
	store := newCountingStore()
	resolver := NewTenantResolver(store, zap.NewNop())

	tenantID, err := resolver.Resolve(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, testTenantID, tenantID)
	assert.Equal(t, 1, store.mappingCalls)
}

func TestTenantResolver_ResolveServesFromCache(t *testing.T) {
	store := newCountingStore()
	resolver := NewTenantResolver(store, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := resolver.Resolve(ctx, testHash)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.mappingCalls, "repeat lookups should hit the cache")
}

func TestTenantResolver_UnknownHashIsNotFound(t *testing.T) {
	resolver := NewTenantResolver(newCountingStore(), zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "ffffffffffffffffffffffffffffffff")
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTenantResolver_MalformedHashRejectedWithoutLookup(t *testing.T) {
	store := newCountingStore()
	resolver := NewTenantResolver(store, zap.NewNop())

	for _, hash := range []string{"", "short", "NOTHEX!!NOTHEX!!", "ABCDEF0123456789ABCDEF0123456789"} {
		_, err := resolver.Resolve(context.Background(), hash)
		require.Error(t, err, "hash %q", hash)
		assert.True(t, appErrors.IsValidation(err), "hash %q", hash)
	}
	assert.Equal(t, 0, store.mappingCalls)
}

func TestTenantResolver_LoadConfig(t *testing.T) {
	store := newCountingStore()
	resolver := NewTenantResolver(store, zap.NewNop())
	ctx := context.Background()

	cfg, err := resolver.LoadConfig(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-haiku", cfg.ModelID)

	_, err = resolver.LoadConfig(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.configCalls)
}

func TestTenantResolver_LoadConfigMissingIsNotFound(t *testing.T) {
	resolver := NewTenantResolver(newCountingStore(), zap.NewNop())

	cfg, err := resolver.LoadConfig(context.Background(), "no-such-tenant")
	require.Error(t, err)
	assert.Nil(t, cfg, "a missing config must never be replaced with a default")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTenantResolver_ReverseLookup(t *testing.T) {
	store := newCountingStore()
	resolver := NewTenantResolver(store, zap.NewNop())
	ctx := context.Background()

	hash, err := resolver.ReverseLookup(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
	assert.Equal(t, 1, store.listCalls)

	// The scan primes the reverse cache.
	_, err = resolver.ReverseLookup(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
}

func TestTenantResolver_ReverseLookupUnknownTenant(t *testing.T) {
	resolver := NewTenantResolver(newCountingStore(), zap.NewNop())

	_, err := resolver.ReverseLookup(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTenantResolver_ClearCache(t *testing.T) {
	store := newCountingStore()
	resolver := NewTenantResolver(store, zap.NewNop())
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, testHash)
	require.NoError(t, err)

	resolver.ClearCache()

	_, err = resolver.Resolve(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, 2, store.mappingCalls)
}
