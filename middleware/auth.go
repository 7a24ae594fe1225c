package middleware

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const bearerPrefix = "Bearer "

// AuthMiddleware guards admin routes with a bearer token compared against
// admin.token_hash. Without a configured hash every request is refused.
type AuthMiddleware struct {
	logger    types.Logger
	metrics   types.MetricsManager
	tokenHash []byte
	weight    int
}

func NewAuthMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *AuthMiddleware {
	var tokenHash []byte
	if admin := config.GetConfig().Admin; admin != nil && admin.TokenHash != "" {
		tokenHash = []byte(admin.TokenHash)

		if _, err := bcrypt.Cost(tokenHash); err != nil {
			logger.Error("Admin token hash is not a bcrypt hash, admin routes disabled", zap.Error(err))
			tokenHash = nil
		}
	}

	if tokenHash == nil {
		logger.Warn("Admin token not configured, admin routes will answer 401")
	}

	return &AuthMiddleware{
		logger:    logger,
		metrics:   metrics,
		tokenHash: tokenHash,
		weight:    itemWeight(middlewaresConfig(config).Auth, defaultAuthWeight),
	}
}

func (a *AuthMiddleware) Name() string { return "auth" }
func (a *AuthMiddleware) Weight() int  { return a.weight }

func (a *AuthMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	if ctx.IsOptions() {
		next(ctx)
		return
	}

	if err := a.authenticate(ctx); err != nil {
		a.logger.Warn("Authentication failed",
			zap.ByteString("path", ctx.Path()),
			zap.String("remote_addr", ctx.RemoteIP().String()),
			zap.Error(err))

		if a.metrics != nil {
			a.metrics.Counter("http_auth_failures_total", map[string]string{
				"path": routeLabel(ctx),
			}).Inc()
		}

		ctx.Response.Header.Set("WWW-Authenticate", `Bearer realm="admin"`)
		utils.WriteError(ctx, types.NewAppError(types.KindAuth, "Authentication required", err))
		return
	}

	next(ctx)
}

func (a *AuthMiddleware) authenticate(ctx *fasthttp.RequestCtx) error {
	if a.tokenHash == nil {
		return types.ErrAuthNotConfigured
	}

	header := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
	if !strings.HasPrefix(header, bearerPrefix) {
		return types.ErrAuthTokenInvalid
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return types.ErrAuthTokenInvalid
	}

	if err := bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)); err != nil {
		return types.ErrAuthTokenInvalid
	}

	return nil
}
