package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/pkg/common"
)

// ErrorResponse is the wire format for error responses. The chat frontend
// keys off the "error" field, so it always carries a machine-readable code
// or a short message.
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"status_code"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// ErrorHandler converts application errors into HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
	}
}

// Handle processes an error and sends the appropriate HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	if appErr := GetAppError(err); appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}

		response := ErrorResponse{
			Error:      h.errorField(appErr),
			Details:    appErr.Message,
			StatusCode: status,
		}
		if h.debug && len(appErr.Details) > 0 {
			response.Context = appErr.Details
		}

		h.logError(r, appErr, status)
		h.sendJSON(w, status, response)
		return
	}

	// Unexpected error: log with stack context, respond generically. The
	// invocation is isolated, so a 500 here never takes anything else down.
	h.logger.Error("unhandled error",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", common.ExtractRequestID(r)),
		zap.Duration("elapsed", common.GetElapsedTime(r.Context())),
		zap.Stack("stack"),
	)

	response := ErrorResponse{
		Error:      "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
	if h.debug {
		response.Details = err.Error()
	}
	h.sendJSON(w, http.StatusInternalServerError, response)
}

// HandleStatus sends an error response with an explicit status and message
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
		zap.String("request_id", common.ExtractRequestID(r)),
	)

	common.RespondError(w, status, message, "")
}

// errorField picks the client-facing "error" value. Tenant resolution
// failures keep their legacy human-readable message; everything else uses
// the stable code when one is set.
func (h *ErrorHandler) errorField(err *AppError) string {
	if err.Code == CodeTenantNotFound {
		return "Tenant configuration not found"
	}
	if err.Code != "" {
		return err.Code
	}
	return err.Message
}

func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("error_code", err.Code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", common.ExtractRequestID(r)),
		zap.Duration("elapsed", common.GetElapsedTime(r.Context())),
	}
	if err.Cause != nil {
		fields = append(fields, zap.NamedError("cause", err.Cause))
	}

	switch {
	case status >= 500:
		fields = append(fields, zap.String("stack_trace", err.StackTrace))
		h.logger.Error(err.Message, fields...)
	case status == http.StatusTooManyRequests:
		h.logger.Warn("rate limited", fields...)
	default:
		h.logger.Warn(err.Message, fields...)
	}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}
