package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/pkg/auth"
	"github.com/longhornrumble/picasso/pkg/common"
)

// IPFloodGuard applies a coarse per-IP ceiling across every route. It sits
// above the per-endpoint quotas and only trips on outright flooding, so a
// busy but legitimate client hits the endpoint limits first.
func IPFloodGuard(limiter *auth.IPRateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("ip flood check failed", zap.Error(err))
				allowed = true
			}
			if !allowed {
				logger.Warn("ip flood guard tripped", zap.String("ip", ip))
				common.RespondRateLimited(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
