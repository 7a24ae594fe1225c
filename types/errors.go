package types

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning        = errors.New("server not running")
	ErrServerAlreadyRunning    = errors.New("server already running")
	ErrServerStartFailed       = errors.New("server start failed")
	ErrTLSConfigInvalid        = errors.New("tls config invalid")
	ErrServerStopFailed        = errors.New("server stop failed")
	ErrRouteFinalizationFailed = errors.New("route finalization failed")
	ErrHandlerIsNil            = errors.New("handler is nil")
	ErrPathNotFound            = errors.New("path not found")
)

var (
	ErrMiddlewareNotFound     = errors.New("middleware not found")
	ErrMiddlewareInvalidType  = errors.New("middleware invalid type")
	ErrMiddlewareOrderInvalid = errors.New("middleware order invalid")
	ErrAuthTokenInvalid       = errors.New("auth token invalid")
	ErrAuthNotConfigured      = errors.New("auth not configured")
	ErrBodyTooLarge           = errors.New("body too large")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
)

var (
	ErrCacheNotFound         = errors.New("cache not found")
	ErrCacheKeyEmpty         = errors.New("cache key empty")
	ErrCacheConnectionFailed = errors.New("cache connection failed")
	ErrCacheTypeUnknown      = errors.New("cache type unknown")
	ErrCacheOperationFailed  = errors.New("cache operation failed")
	ErrCacheIsDisabled       = errors.New("cache manager is disabled")
	ErrCacheIsRunning        = errors.New("cache is running")
	ErrCacheIsNotRunning     = errors.New("cache is not running")
)

var (
	ErrStoreTypeUnknown      = errors.New("store type unknown")
	ErrStoreConnectionFailed = errors.New("store connection failed")
	ErrStoreOperationFailed  = errors.New("store operation failed")
)

var (
	ErrLimiterIsRunning     = errors.New("limiter is running")
	ErrLimiterIsNotRunning  = errors.New("limiter is not running")
	ErrLimiterConfigInvalid = errors.New("limiter config invalid")
	ErrLimiterNotFound      = errors.New("limiter not found")
)

var (
	ErrDatabaseTypeUnknown      = errors.New("database type unknown")
	ErrDatabaseConnectionFailed = errors.New("database connection failed")
	ErrDatabaseOperationFailed  = errors.New("database operation failed")
	ErrDatabaseIsRunning        = errors.New("database is running")
	ErrDatabaseIsNotRunning     = errors.New("database is not running")
	ErrCollectionNameEmpty      = errors.New("collection name empty")
	ErrDocumentsEmpty           = errors.New("documents empty")
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this name already exists")
	ErrInquiryNotFound      = errors.New("inquiry not found")
	ErrValidationFailed     = errors.New("validation failed")
)

var (
	ErrNotifierDisabled   = errors.New("email notifications disabled")
	ErrNotifierSendFailed = errors.New("email send failed")
	ErrWebhookFailed      = errors.New("webhook delivery failed")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

var (
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronIsNotRunning      = errors.New("cron is not running")
	ErrCronSchedulerStopped  = errors.New("cron scheduler stopped")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobFailed         = errors.New("cron job failed")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobTimeout        = errors.New("cron job timeout")
)

var (
	ErrMetricsTypeUnknown   = errors.New("metrics type unknown")
	ErrMetricsStartFailed   = errors.New("metrics start failed")
	ErrMetricsConfigInvalid = errors.New("metrics config invalid")
	ErrMetricsIsDisabled    = errors.New("metrics manager is disabled")
	ErrMetricsIsRunning     = errors.New("metrics is running")
	ErrMetricsNotRunning    = errors.New("metrics is not running")
)

var (
	ErrHealthCheckFailed  = errors.New("health check failed")
	ErrHealthCheckTimeout = errors.New("health check timeout")
	ErrHealthIsRunning    = errors.New("health is running")
	ErrHealthIsNotRunning = errors.New("health is not running")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrServiceIsRunning     = errors.New("service is running")
	ErrServiceIsNotRunning  = errors.New("service is not running")
	ErrComponentNotFound    = errors.New("component not found")
	ErrComponentStartFailed = errors.New("component start failed")
	ErrComponentStopFailed  = errors.New("component stop failed")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrOperationFailed  = errors.New("operation failed")
	ErrNotImplemented   = errors.New("not implemented")
	ErrPermissionDenied = errors.New("permission denied")
	ErrResourceNotFound = errors.New("resource not found")
	ErrInternalError    = errors.New("internal error")
	ErrContextCancelled = errors.New("context cancelled")
	ErrContextTimeout   = errors.New("context timeout")
	ErrInvalidState     = errors.New("invalid state")
	ErrNotSupported     = errors.New("not supported")
)

type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION_ERROR"
	KindDatabase   ErrorKind = "DATABASE_ERROR"
	KindNetwork    ErrorKind = "NETWORK_ERROR"
	KindAuth       ErrorKind = "AUTH_ERROR"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindRateLimit  ErrorKind = "RATE_LIMIT"
	KindConflict   ErrorKind = "CONFLICT"
	KindInternal   ErrorKind = "INTERNAL_ERROR"
)

var kindStatus = map[ErrorKind]int{
	KindValidation: http.StatusBadRequest,
	KindDatabase:   http.StatusInternalServerError,
	KindNetwork:    http.StatusServiceUnavailable,
	KindAuth:       http.StatusUnauthorized,
	KindNotFound:   http.StatusNotFound,
	KindRateLimit:  http.StatusTooManyRequests,
	KindConflict:   http.StatusConflict,
	KindInternal:   http.StatusInternalServerError,
}

// AppError is an error that carries an HTTP status and a stable code for API responses.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details []string
	Err     error
}

func NewAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NewValidationError(details []string) *AppError {
	return &AppError{Kind: KindValidation, Message: "Validation failed", Details: details, Err: ErrValidationFailed}
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Status() int {
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
