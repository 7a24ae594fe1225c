package ratelimit

import (
	"math"
	"time"

	"github.com/saiset-co/catalog-service/types"
)

// Guard checks a request against a limiter and turns a denial into a
// *types.RateLimitError.
type Guard func(req types.RequestIdentity) (types.RateLimitResult, error)

// NewGuard keys requests with resolver, or with Identity when resolver is nil.
func NewGuard(limiter types.RateLimiter, resolver *Resolver, now func() time.Time) Guard {
	if now == nil {
		now = time.Now
	}

	return func(req types.RequestIdentity) (types.RateLimitResult, error) {
		result := limiter.Check(resolver.Identity(req))
		if result.Allowed {
			return result, nil
		}

		return result, &types.RateLimitError{
			RetryAfter: RetryAfterSeconds(result.ResetTime, now()),
			Limit:      result.Limit,
			ResetTime:  result.ResetTime,
		}
	}
}

// RetryAfterSeconds rounds the time left until reset up to whole seconds.
func RetryAfterSeconds(resetAt, now time.Time) int {
	left := resetAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
