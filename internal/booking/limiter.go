package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medislot/pkg/logging"
)

// AttemptLimiter caps booking attempts per patient email inside a rolling
// window using a Redis counter. It fails open when Redis is unavailable.
type AttemptLimiter struct {
	redis  *redis.Client
	logger *logging.Logger
	max    int
	window time.Duration
}

// NewAttemptLimiter returns nil when client is nil or max is not positive;
// a nil limiter allows every attempt.
func NewAttemptLimiter(client *redis.Client, max int, window time.Duration, logger *logging.Logger) *AttemptLimiter {
	if client == nil || max <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = time.Hour
	}
	return &AttemptLimiter{redis: client, logger: logger, max: max, window: window}
}

// Allow records one attempt for email and reports whether it is within the limit.
func (l *AttemptLimiter) Allow(ctx context.Context, email string) bool {
	if l == nil {
		return true
	}
	key := fmt.Sprintf("booking:attempts:%s", NormalizeEmail(email))

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Error("attempt limiter unavailable", "error", err)
		return true
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}
	if int(count) > l.max {
		l.logger.Warn("booking attempts exceeded", "count", count, "max", l.max)
		return false
	}
	return true
}

// Reset clears the counter for email.
func (l *AttemptLimiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return l.redis.Del(ctx, fmt.Sprintf("booking:attempts:%s", NormalizeEmail(email))).Err()
}
