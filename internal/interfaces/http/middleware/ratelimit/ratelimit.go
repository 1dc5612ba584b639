package ratelimit

import (
	"net"
	"net/http"

	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const keyPrefix = "ip:"

// RateLimiter throttles requests per client IP
type RateLimiter struct {
	limiter domain.AttemptLimiter
	logger  *zap.Logger
}

// NewRateLimiter creates a per-IP middleware backed by limiter
func NewRateLimiter(limiter domain.AttemptLimiter, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		logger:  logger,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r.RemoteAddr)
		if ip == "" {
			rl.logger.Error("Unable to parse client IP", zap.String("remote_addr", r.RemoteAddr))
			errors.RespondWithError(w, domain.ErrInternal)
			return
		}

		allowed, err := rl.limiter.Allow(r.Context(), keyPrefix+ip)
		if err != nil {
			rl.logger.Error("Rate limiter failed", zap.Error(err))
			errors.RespondWithError(w, domain.ErrInternal)
			return
		}
		if !allowed {
			errors.RespondWithError(w, domain.ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP accepts host:port as well as a bare IP, which is what
// middleware.RealIP leaves in RemoteAddr
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	if ip := net.ParseIP(remoteAddr); ip != nil {
		return ip.String()
	}
	return ""
}
