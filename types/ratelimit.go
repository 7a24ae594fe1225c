package types

import (
	"fmt"
	"time"
)

type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// RateLimitError is returned when an identity has used up its window.
type RateLimitError struct {
	RetryAfter int
	Limit      int
	ResetTime  time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

type RateLimiter interface {
	LifecycleManager
	Check(identity string) RateLimitResult
	Sweep() int
	Len() int
}

// RequestIdentity is the part of an HTTP request used to pick a rate limit bucket.
type RequestIdentity interface {
	ClientIP() string
	Header(name string) string
}
