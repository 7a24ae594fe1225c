package ratelimit

import (
	"time"
)

const (
	LimiterContact = "contact"
	LimiterInquiry = "inquiry"
	LimiterAPI     = "api"
)

// Presets are used for any limiter the configuration does not override.
var Presets = map[string]Config{
	LimiterContact: {Window: 15 * time.Minute, MaxRequests: 5},
	LimiterInquiry: {Window: 15 * time.Minute, MaxRequests: 10},
	LimiterAPI:     {Window: time.Minute, MaxRequests: 60},
}
