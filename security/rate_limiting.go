package security

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{redis: redisClient, limit: int64(perMinute), window: time.Minute}
}

// RateLimit caps mutating aux requests per client IP per window. Redis
// errors let the request through.
func (r *RateLimiter) RateLimit(e *core.RequestEvent) error {
	if r.redis == nil {
		return e.Next()
	}

	ctx := e.Request.Context()
	key := fmt.Sprintf("ratelimit:aux:%s", clientIP(e))

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limit check failed", "key", key, "error", err)
		return e.Next()
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > r.limit {
		return apis.NewTooManyRequestsError("Too many requests", nil)
	}

	return e.Next()
}

// AntiBot rejects obvious crawler user agents.
func (r *RateLimiter) AntiBot(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return apis.NewForbiddenError("Access denied", nil)
	}
	return e.Next()
}

func clientIP(e *core.RequestEvent) string {
	if e.App != nil {
		return e.RealIP()
	}
	host, _, err := net.SplitHostPort(e.Request.RemoteAddr)
	if err != nil {
		return e.Request.RemoteAddr
	}
	return host
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
