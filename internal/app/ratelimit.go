package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var bookingRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisBookingRateLimiter implements distributed rate limiting using Redis.
// It protects the booking creation path from runaway clients; when Redis is
// not configured the limiter is a no-op and requests always pass.
type RedisBookingRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBookingRateLimiter(client redis.UniversalClient, prefix string) *RedisBookingRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "maidconnect:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisBookingRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

// Booking creation is limited per customer over a fixed one-minute window;
// only the limit itself is configurable. Other scopes pick their own window
// through ConsumeRateLimit.
const (
	bookingCreateScope  = "booking_create"
	bookingCreateWindow = time.Minute
)

// ConsumeBookingCreate counts one booking-create attempt for the customer
// inside the booking-create window.
func (r *RedisBookingRateLimiter) ConsumeBookingCreate(ctx context.Context, customerID string, limit int) (count int, retryAfterSeconds int, err error) {
	return r.ConsumeRateLimit(ctx, bookingCreateScope, customerID, limit, bookingCreateWindow)
}

// ConsumeRateLimit counts one hit for (scope, subject) inside a fixed window
// and reports the running count plus how long to wait once over the limit.
func (r *RedisBookingRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	normalizedScope := strings.TrimSpace(scope)
	normalizedSubject := strings.TrimSpace(subject)
	if normalizedScope == "" || normalizedSubject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, normalizedScope, normalizedSubject)
	rawResult, err := bookingRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return int(currentCount), retryAfter, nil
}
