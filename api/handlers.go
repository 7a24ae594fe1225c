package api

import (
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	productsMaxAge   = 5 * time.Minute
	categoriesMaxAge = 5 * time.Minute
	relatedLimit     = 4
	adminMiddleware  = "auth"
)

// Handlers serves the catalog, inquiry and admin endpoints under /api.
type Handlers struct {
	products     types.ProductService
	inquiries    types.InquiryService
	cache        types.CacheManager
	inquiryGuard ratelimit.Guard
	contactGuard ratelimit.Guard
	identity     func(types.RequestIdentity) string
	logger       types.Logger
	now          func() time.Time
}

type Option func(*Handlers)

func WithClock(now func() time.Time) Option {
	return func(h *Handlers) {
		h.now = now
	}
}

func New(products types.ProductService, inquiries types.InquiryService, cache types.CacheManager, limiters *ratelimit.Manager, logger types.Logger, opts ...Option) (*Handlers, error) {
	if limiters == nil {
		return nil, types.Errorf(types.ErrLimiterNotFound, "rate limit manager is required")
	}

	inquiryGuard, err := limiters.Guard(ratelimit.LimiterInquiry)
	if err != nil {
		return nil, err
	}

	contactGuard, err := limiters.Guard(ratelimit.LimiterContact)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		products:     products,
		inquiries:    inquiries,
		cache:        cache,
		inquiryGuard: inquiryGuard,
		contactGuard: contactGuard,
		identity:     limiters.Identity,
		logger:       logger,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Register mounts every endpoint. Write and listing routes for staff carry
// the auth middleware.
func (h *Handlers) Register(router types.HTTPRouter) {
	api := router.Group("/api")

	api.GET("/products", h.listProducts)
	api.POST("/products", h.createProduct).WithMiddlewares(adminMiddleware)
	api.GET("/products/{id}", h.getProduct).WithCacheControl(productsMaxAge)
	api.PUT("/products/{id}", h.updateProduct).WithMiddlewares(adminMiddleware)
	api.DELETE("/products/{id}", h.deleteProduct).WithMiddlewares(adminMiddleware)

	api.GET("/categories", h.listCategories).WithCacheControl(categoriesMaxAge)

	// Submissions are charged to their own limiter only.
	api.POST("/inquiries", h.submitInquiry).WithoutMiddlewares("rate_limit")
	api.GET("/inquiries", h.listInquiries).WithMiddlewares(adminMiddleware)

	api.POST("/contact", h.submitContact).WithoutMiddlewares("rate_limit")
	api.GET("/contact", h.contactStatus)

	api.DELETE("/cache", h.clearCache).WithMiddlewares(adminMiddleware)
}

func decodeBody[T any](ctx *fasthttp.RequestCtx, target *T) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return types.NewAppError(types.KindValidation, "Request body is required", types.ErrInvalidParameter)
	}

	if err := utils.Unmarshal(body, target); err != nil {
		return types.NewAppError(types.KindValidation, "Invalid JSON body", err)
	}
	return nil
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}
