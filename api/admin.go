package api

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/utils"
)

// clearCache drops the whole primary cache, or only keys under ?prefix=.
func (h *Handlers) clearCache(ctx *fasthttp.RequestCtx) {
	prefix := string(ctx.QueryArgs().Peek("prefix"))

	var removed int
	if prefix != "" {
		removed = h.cache.InvalidatePrefix(prefix)
	} else {
		removed = h.cache.Len()
		h.cache.Clear()
	}

	h.logger.Info("Cache cleared by admin", zap.String("prefix", prefix), zap.Int("removed", removed))

	utils.SetNoCache(ctx)
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"message": "Cache cleared",
		"prefix":  prefix,
		"removed": removed,
		"success": true,
	})
}
