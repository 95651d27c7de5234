// Package bedrock adapts the Bedrock runtime and agent APIs to the
// application's model and retrieval ports.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/ports"
	"github.com/longhornrumble/picasso/pkg/common"
	"github.com/longhornrumble/picasso/pkg/observability"
)

const defaultMaxTokens = 1024

// Runtime implements ports.ModelInvoker over the Bedrock runtime API
// using the Anthropic messages body format.
type Runtime struct {
	client *bedrockruntime.Client
	tracer *observability.Tracer
	logger *zap.Logger
}

// NewRuntime creates a new Runtime
func NewRuntime(client *bedrockruntime.Client, tracer *observability.Tracer, logger *zap.Logger) ports.ModelInvoker {
	return &Runtime{
		client: client,
		tracer: tracer,
		logger: logger,
	}
}

// contextFields pulls the tenant and session stashed in ctx into log
// fields, so adapter logs correlate without threading identifiers through
// every signature.
func contextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if tenantID, ok := common.GetTenantID(ctx); ok {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	if sessionID, ok := common.GetSessionID(ctx); ok {
		fields = append(fields, zap.String("session_id", sessionID))
	}
	return fields
}

// messagesRequest is the Anthropic messages API request body
type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the subset of the response body we consume
type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// streamEvent is one decoded chunk of a streamed response
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func encodeBody(req ports.ModelRequest) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return json.Marshal(messagesRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages: []message{
			{Role: "user", Content: req.Prompt},
		},
	})
}

// Invoke runs one buffered model call and returns the full text.
func (r *Runtime) Invoke(ctx context.Context, req ports.ModelRequest) (string, error) {
	var text string
	err := r.tracer.TraceFunction(ctx, "bedrock.invoke", func(ctx context.Context) error {
		var invokeErr error
		text, invokeErr = r.invoke(ctx, req)
		return invokeErr
	})
	return text, err
}

func (r *Runtime) invoke(ctx context.Context, req ports.ModelRequest) (string, error) {
	body, err := encodeBody(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	out, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("model returned no text content")
	}
	return sb.String(), nil
}

// InvokeStream runs a streamed model call, calling onChunk for each text
// delta in arrival order.
func (r *Runtime) InvokeStream(ctx context.Context, req ports.ModelRequest, onChunk func(string) error) error {
	return r.tracer.TraceFunction(ctx, "bedrock.invoke_stream", func(ctx context.Context) error {
		return r.invokeStream(ctx, req, onChunk)
	})
}

func (r *Runtime) invokeStream(ctx context.Context, req ports.ModelRequest, onChunk func(string) error) error {
	body, err := encodeBody(req)
	if err != nil {
		return fmt.Errorf("failed to encode model request: %w", err)
	}

	out, err := r.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("model stream failed to start: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	for event := range stream.Events() {
		chunk, ok := event.(*brtypes.ResponseStreamMemberChunk)
		if !ok {
			continue
		}

		var decoded streamEvent
		if err := json.Unmarshal(chunk.Value.Bytes, &decoded); err != nil {
			r.logger.Warn("undecodable stream chunk", append(contextFields(ctx), zap.Error(err))...)
			continue
		}
		if decoded.Type != "content_block_delta" || decoded.Delta.Text == "" {
			continue
		}
		if err := onChunk(decoded.Delta.Text); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("model stream failed: %w", err)
	}
	return nil
}
