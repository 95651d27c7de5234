package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metrics publishes operational metrics to CloudWatch. Publishing is
// best-effort: a failed PutMetricData is logged and dropped, never
// propagated into the request path.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
	logger    *zap.Logger
}

// NewMetrics creates a CloudWatch-backed metrics publisher
func NewMetrics(namespace string, client *cloudwatch.Client, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordTurn records a completed conversation turn with its latency
func (m *Metrics) RecordTurn(ctx context.Context, tenantID string, latency time.Duration, degraded bool) {
	data := []types.MetricDatum{
		{
			MetricName: aws.String("TurnCompleted"),
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Dimensions: tenantDimension(tenantID),
		},
		{
			MetricName: aws.String("TurnLatency"),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Dimensions: tenantDimension(tenantID),
		},
	}
	if degraded {
		data = append(data, types.MetricDatum{
			MetricName: aws.String("TurnDegraded"),
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Dimensions: tenantDimension(tenantID),
		})
	}
	m.put(ctx, data)
}

// RecordRateLimited records an endpoint rate-limit rejection
func (m *Metrics) RecordRateLimited(ctx context.Context, endpoint string) {
	m.put(ctx, []types.MetricDatum{{
		MetricName: aws.String("RateLimited"),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Dimensions: []types.Dimension{{
			Name:  aws.String("Endpoint"),
			Value: aws.String(endpoint),
		}},
	}})
}

// RecordTurnConflict records a lost compare-and-swap on a session turn
func (m *Metrics) RecordTurnConflict(ctx context.Context, tenantID string) {
	m.put(ctx, []types.MetricDatum{{
		MetricName: aws.String("TurnConflict"),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Dimensions: tenantDimension(tenantID),
	}})
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	if m.client == nil {
		return
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("failed to publish metrics", zap.Error(err))
	}
}

func tenantDimension(tenantID string) []types.Dimension {
	return []types.Dimension{{
		Name:  aws.String("TenantID"),
		Value: aws.String(tenantID),
	}}
}
