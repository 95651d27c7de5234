package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/services"
	"github.com/longhornrumble/picasso/interfaces/http/rest/sse"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
)

// heartbeatInterval is how often an open stream emits a comment line so
// buffering intermediaries keep the connection alive between frames.
const heartbeatInterval = 15 * time.Second

// StreamHandler handles streamed chat requests over SSE
type StreamHandler struct {
	service   *services.ChatService
	errors    *appErrors.ErrorHandler
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(service *services.ChatService, errors *appErrors.ErrorHandler, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		service:   service,
		errors:    errors,
		logger:    logger,
		heartbeat: heartbeatInterval,
	}
}

// HandleStream handles POST /api/v1/chat/stream. Errors before the first
// frame go out as plain JSON; once the stream is open they become error
// frames, since the status line is already committed.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	chatHandler := ChatHandler{service: h.service, errors: h.errors, logger: h.logger}
	req, err := chatHandler.parseRequest(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	// Heartbeats run for the whole life of the stream: the gap between the
	// start frame and the first model token is exactly the window proxies
	// time out on.
	ctx, cancel := context.WithCancel(r.Context())
	heartbeats := h.startHeartbeats(ctx, writer)
	defer func() {
		cancel()
		<-heartbeats
	}()

	result, err := h.service.StreamMessage(ctx, req, func(event services.StreamEvent) error {
		return writer.Send(sse.Frame{Type: event.Type, Content: event.Content})
	})
	if err != nil {
		// Before the first frame the response is still uncommitted and can
		// carry a normal error status. After that, errors become frames.
		if !writer.Started() {
			h.errors.Handle(w, r, err)
			return
		}
		h.logger.Error("stream turn failed", zap.Error(err))
		if sendErr := writer.Send(sse.Frame{Type: "error", Content: streamErrorContent(err)}); sendErr != nil {
			return
		}
		writer.Done()
		return
	}

	done := sse.Frame{
		Type:      "done",
		SessionID: result.SessionID,
		Context:   responseContext(result),
	}
	if err := writer.Send(done); err != nil {
		return
	}
	writer.Done()
}

// startHeartbeats emits comment lines on an interval until ctx is
// canceled. It stays silent until the stream is committed, so a request
// that fails before the first frame can still respond with plain JSON.
// The returned channel closes once the goroutine has stopped writing.
func (h *StreamHandler) startHeartbeats(ctx context.Context, writer *sse.Writer) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !writer.Started() {
					continue
				}
				if err := writer.Heartbeat(); err != nil {
					return
				}
			}
		}
	}()
	return stopped
}

// streamErrorContent picks the client-facing message for an in-stream
// failure.
func streamErrorContent(err error) string {
	if appErr := appErrors.GetAppError(err); appErr != nil && appErr.Code != "" {
		return appErr.Code
	}
	return "request failed"
}
