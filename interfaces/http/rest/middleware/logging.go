package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/pkg/common"
)

// Logger creates a logging middleware. It also stashes the request ID and
// handling start time in the context so downstream error responses carry
// them.
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := common.WithStartTime(r.Context(), start)
			if reqID := middleware.GetReqID(ctx); reqID != "" {
				ctx = common.WithRequestID(ctx, reqID)
			}
			r = r.WithContext(ctx)

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(ctx)),
				zap.String("remoteAddr", r.RemoteAddr),
			)
		})
	}
}
