package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	EventInquiryCreated = "inquiry.created"

	SignatureHeader = "X-Signature"
	EventHeader     = "X-Event"

	defaultWebhookTimeout = 10 * time.Second
	defaultWebhookBackoff = time.Second
	webhookUserAgent      = "catalog-service-webhook/1.0"
)

// Doer is the part of fasthttp.Client used for delivery.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

type webhookEndpoint struct {
	config  types.WebhookConfig
	breaker *CircuitBreaker
}

type webhookPayload struct {
	Event     string         `json:"event"`
	Timestamp int64          `json:"timestamp"`
	Data      *types.Inquiry `json:"data"`
}

// Webhooks posts every new inquiry as JSON to the configured endpoints.
// Bodies are signed with HMAC-SHA256 when the endpoint has a secret.
type Webhooks struct {
	client    Doer
	endpoints []*webhookEndpoint
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	logger    types.Logger
	now       func() time.Time
}

type WebhookOption func(*Webhooks)

func WithDoer(client Doer) WebhookOption {
	return func(w *Webhooks) {
		w.client = client
	}
}

func WithBackoff(backoff time.Duration) WebhookOption {
	return func(w *Webhooks) {
		w.backoff = backoff
	}
}

func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(w *Webhooks) {
		w.now = now
	}
}

func NewWebhooks(config *types.NotifyConfig, logger types.Logger, opts ...WebhookOption) *Webhooks {
	w := &Webhooks{
		timeout: defaultWebhookTimeout,
		backoff: defaultWebhookBackoff,
		logger:  logger,
		now:     time.Now,
	}

	if config != nil {
		if config.WebhookTimeout > 0 {
			w.timeout = config.WebhookTimeout
		}
		w.retries = config.WebhookRetries
	}

	w.client = &fasthttp.Client{
		Name:         webhookUserAgent,
		ReadTimeout:  w.timeout,
		WriteTimeout: w.timeout,
	}

	for _, opt := range opts {
		opt(w)
	}

	if config != nil {
		for _, hook := range config.Webhooks {
			w.endpoints = append(w.endpoints, &webhookEndpoint{
				config:  hook,
				breaker: NewCircuitBreaker(hook.URL, config.CircuitBreaker, logger, w.now),
			})
		}
	}

	return w
}

func (w *Webhooks) Enabled() bool {
	return len(w.endpoints) > 0
}

// NotifyInquiry delivers to all endpoints in parallel. It fails only when
// every delivery failed.
func (w *Webhooks) NotifyInquiry(ctx context.Context, inquiry *types.Inquiry) error {
	if !w.Enabled() {
		return nil
	}

	body, err := utils.Marshal(webhookPayload{
		Event:     EventInquiryCreated,
		Timestamp: w.now().Unix(),
		Data:      inquiry,
	})
	if err != nil {
		return types.WrapError(err, "failed to marshal webhook payload")
	}

	var (
		mu        sync.Mutex
		errs      error
		delivered int
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, endpoint := range w.endpoints {
		endpoint := endpoint
		g.Go(func() error {
			err := w.deliver(gCtx, endpoint, body)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				w.logger.Error("Webhook delivery failed",
					zap.String("url", endpoint.config.URL),
					zap.String("inquiry_id", inquiry.ID),
					zap.Error(err))
				errs = multierr.Append(errs, err)
				return nil
			}
			delivered++
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case errs == nil:
		w.logger.Debug("Webhooks delivered", zap.String("inquiry_id", inquiry.ID), zap.Int("count", delivered))
		return nil
	case delivered > 0:
		w.logger.Warn("Some webhook deliveries failed",
			zap.Int("success_count", delivered),
			zap.Int("error_count", len(multierr.Errors(errs))))
		return nil
	default:
		return types.WrapError(errs, "all webhook deliveries failed")
	}
}

func (w *Webhooks) deliver(ctx context.Context, endpoint *webhookEndpoint, body []byte) error {
	var lastErr error

	for attempt := 0; attempt <= w.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !endpoint.breaker.CanExecute() {
			return types.Errorf(types.ErrCircuitBreakerOpen, "url: %s", endpoint.config.URL)
		}

		statusCode, err := w.post(ctx, endpoint.config, body)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			endpoint.breaker.RecordSuccess()
			return nil
		}

		if transient(statusCode, err) {
			endpoint.breaker.RecordFailure()
		}

		lastErr = err
		if err == nil {
			lastErr = types.Errorf(types.ErrWebhookFailed, "HTTP %d", statusCode)
		}

		if !transient(statusCode, err) || attempt == w.retries {
			break
		}

		backoff := time.Duration(attempt+1) * w.backoff
		select {
		case <-time.After(backoff):
			w.logger.Debug("Retrying webhook",
				zap.String("url", endpoint.config.URL),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

func (w *Webhooks) post(ctx context.Context, hook types.WebhookConfig, body []byte) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(hook.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.SetUserAgent(webhookUserAgent)
	req.Header.Set(EventHeader, EventInquiryCreated)
	for key, value := range hook.Headers {
		req.Header.Set(key, value)
	}
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(hook.Secret, body))
	}
	req.SetBody(body)

	timeout := w.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := w.client.DoTimeout(req, resp, timeout); err != nil {
		return 0, err
	}

	return resp.StatusCode(), nil
}

// Sign returns the hex HMAC-SHA256 of payload, as sent in X-Signature after
// the "sha256=" prefix.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
