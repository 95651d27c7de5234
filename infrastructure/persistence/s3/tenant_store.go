package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/domain/tenant"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
)

const (
	mappingPrefix = "mappings/"
	configPrefix  = "tenants/"
)

// TenantStore implements ports.TenantStore over an S3 bucket. Mappings
// live under mappings/<hash>.json and per-tenant configuration under
// tenants/<tenant_id>/config.json.
type TenantStore struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewTenantStore creates a new TenantStore
func NewTenantStore(client *s3.Client, bucket string, logger *zap.Logger) ports.TenantStore {
	return &TenantStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// GetMapping loads the mapping object for a tenant hash
func (s *TenantStore) GetMapping(ctx context.Context, tenantHash string) (*tenant.Mapping, error) {
	key := mappingPrefix + tenantHash + ".json"

	var mapping tenant.Mapping
	if err := s.getJSON(ctx, key, &mapping); err != nil {
		return nil, err
	}
	if mapping.TenantID == "" {
		return nil, fmt.Errorf("mapping object %s has no tenant_id", key)
	}
	if mapping.TenantHash == "" {
		mapping.TenantHash = tenantHash
	}
	return &mapping, nil
}

// GetConfig loads the behavior configuration for a tenant
func (s *TenantStore) GetConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	key := configPrefix + tenantID + "/config.json"

	var cfg tenant.Config
	if err := s.getJSON(ctx, key, &cfg); err != nil {
		return nil, err
	}
	if cfg.TenantID == "" {
		cfg.TenantID = tenantID
	}
	return &cfg, nil
}

// ListMappingHashes returns every tenant hash with a mapping object.
func (s *TenantStore) ListMappingHashes(ctx context.Context) ([]string, error) {
	var hashes []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(mappingPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenant mappings: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimSuffix(path.Base(key), ".json")
			if tenant.IsValidHash(name) {
				hashes = append(hashes, name)
			}
		}
	}

	return hashes, nil
}

// getJSON fetches an object and decodes it, mapping a missing key to a
// not-found error.
func (s *TenantStore) getJSON(ctx context.Context, key string, out interface{}) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return appErrors.NewNotFoundError(key)
		}
		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		s.logger.Error("malformed tenant object",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}
