package utils

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/types"
)

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

func SetNoCache(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")
}

func WriteJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	body, err := Marshal(data)
	if err != nil {
		CreateErrorResponse(ctx)
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// WriteCachedJSON writes a public cacheable response with an ETag derived from the body.
func WriteCachedJSON(ctx *fasthttp.RequestCtx, data interface{}, ttl time.Duration) {
	body, err := Marshal(data)
	if err != nil {
		CreateErrorResponse(ctx)
		return
	}

	etag := ETag(body)
	ctx.Response.Header.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(ttl/time.Second)))
	ctx.Response.Header.Set("ETag", etag)

	if match := ctx.Request.Header.Peek("If-None-Match"); len(match) > 0 && string(match) == etag {
		ctx.SetStatusCode(fasthttp.StatusNotModified)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func ETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}

// WriteError converts err into the {error, code} envelope with the matching status.
func WriteError(ctx *fasthttp.RequestCtx, err error) {
	var rateErr *types.RateLimitError
	if errors.As(err, &rateErr) {
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(rateErr.RetryAfter))
		ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		ctx.Response.Header.Set("X-RateLimit-Remaining", "0")
		ctx.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(rateErr.ResetTime.Unix(), 10))
		SetNoCache(ctx)
		WriteJSON(ctx, fasthttp.StatusTooManyRequests, errorBody{
			Error: rateErr.Error(),
			Code:  string(types.KindRateLimit),
		})
		return
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		SetNoCache(ctx)
		WriteJSON(ctx, appErr.Status(), errorBody{
			Error:   appErr.Message,
			Code:    string(appErr.Kind),
			Details: appErr.Details,
		})
		return
	}

	SetNoCache(ctx)
	WriteJSON(ctx, fasthttp.StatusInternalServerError, errorBody{
		Error: "Internal server error",
		Code:  string(types.KindInternal),
	})
}

func CreateErrorResponse(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetContentType("application/json")
	SetNoCache(ctx)

	if requestID := string(ctx.Request.Header.Peek("X-Request-ID")); requestID != "" {
		ctx.Response.Header.Set("X-Request-ID", requestID)
	}

	ctx.SetBodyString(`{"error":"Internal Server Error","message":"An unexpected error occurred"}`)
}

func CreateUnauthorizedResponse(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	SetNoCache(ctx)

	if requestID := string(ctx.Request.Header.Peek("X-Request-ID")); requestID != "" {
		ctx.Response.Header.Set("X-Request-ID", requestID)
	}

	ctx.SetBodyString(`{"error":"Authentication required","code":"AUTH_ERROR"}`)
}

// QueryInt reads an integer query argument, falling back to def when absent or malformed.
func QueryInt(ctx *fasthttp.RequestCtx, name string, def int) int {
	raw := ctx.QueryArgs().Peek(name)
	if len(raw) == 0 {
		return def
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return def
	}
	return v
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RequestContext returns the per-route deadline context installed by the
// router, or ctx itself when the route has no timeout.
func RequestContext(ctx *fasthttp.RequestCtx) context.Context {
	if rc, ok := ctx.UserValue(types.RequestContextKey).(context.Context); ok {
		return rc
	}
	return ctx
}
