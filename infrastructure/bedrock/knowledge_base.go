package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agtypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/pkg/observability"
)

// KnowledgeBase implements ports.KnowledgeBase over the Bedrock agent
// runtime Retrieve API.
type KnowledgeBase struct {
	client *bedrockagentruntime.Client
	tracer *observability.Tracer
	logger *zap.Logger
}

// NewKnowledgeBase creates a new KnowledgeBase
func NewKnowledgeBase(client *bedrockagentruntime.Client, tracer *observability.Tracer, logger *zap.Logger) ports.KnowledgeBase {
	return &KnowledgeBase{
		client: client,
		tracer: tracer,
		logger: logger,
	}
}

// Retrieve returns up to topK passages relevant to the query.
func (k *KnowledgeBase) Retrieve(ctx context.Context, knowledgeBaseID, query string, topK int) ([]ports.Passage, error) {
	var passages []ports.Passage
	err := k.tracer.TraceFunction(ctx, "bedrock.retrieve", func(ctx context.Context) error {
		var retrieveErr error
		passages, retrieveErr = k.retrieve(ctx, knowledgeBaseID, query, topK)
		return retrieveErr
	})
	return passages, err
}

func (k *KnowledgeBase) retrieve(ctx context.Context, knowledgeBaseID, query string, topK int) ([]ports.Passage, error) {
	input := &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		RetrievalQuery: &agtypes.KnowledgeBaseQuery{
			Text: aws.String(query),
		},
	}
	if topK > 0 {
		input.RetrievalConfiguration = &agtypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &agtypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(topK)),
			},
		}
	}

	out, err := k.client.Retrieve(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("knowledge base retrieval failed: %w", err)
	}

	passages := make([]ports.Passage, 0, len(out.RetrievalResults))
	for _, result := range out.RetrievalResults {
		if result.Content == nil || result.Content.Text == nil {
			continue
		}
		passage := ports.Passage{
			Content: aws.ToString(result.Content.Text),
		}
		if result.Score != nil {
			passage.Score = *result.Score
		}
		if result.Location != nil && result.Location.S3Location != nil {
			passage.Source = aws.ToString(result.Location.S3Location.Uri)
		}
		passages = append(passages, passage)
	}

	k.logger.Debug("knowledge base retrieval",
		append(contextFields(ctx),
			zap.String("knowledge_base_id", knowledgeBaseID),
			zap.Int("passages", len(passages)),
		)...,
	)
	return passages, nil
}
