package api

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

type productListResponse struct {
	types.ProductList
	Success bool `json:"success"`
}

type productResponse struct {
	Product         *types.Product  `json:"product"`
	RelatedProducts []types.Product `json:"relatedProducts"`
	Success         bool            `json:"success"`
}

type productWriteResponse struct {
	Message   string         `json:"message"`
	ProductID string         `json:"productId,omitempty"`
	Product   *types.Product `json:"product,omitempty"`
	Success   bool           `json:"success"`
}

func productFilter(ctx *fasthttp.RequestCtx) types.ProductFilter {
	args := ctx.QueryArgs()

	filter := types.ProductFilter{
		Category:  string(args.Peek("category")),
		Featured:  string(args.Peek("featured")) == "true",
		Search:    string(args.Peek("search")),
		SortBy:    string(args.Peek("sortBy")),
		SortOrder: 1,
		Limit:     utils.QueryInt(ctx, "limit", 0),
		Skip:      utils.QueryInt(ctx, "skip", 0),
	}

	if strings.EqualFold(string(args.Peek("sortOrder")), "desc") {
		filter.SortOrder = -1
	}

	return filter
}

func (h *Handlers) listProducts(ctx *fasthttp.RequestCtx) {
	list, err := h.products.List(utils.RequestContext(ctx), productFilter(ctx))
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		utils.WriteError(ctx, err)
		return
	}

	utils.WriteCachedJSON(ctx, productListResponse{ProductList: *list, Success: true}, productsMaxAge)
}

func (h *Handlers) getProduct(ctx *fasthttp.RequestCtx) {
	reqCtx := utils.RequestContext(ctx)

	product, err := h.products.Get(reqCtx, pathParam(ctx, "id"))
	if err != nil {
		utils.WriteError(ctx, err)
		return
	}

	related, err := h.products.Related(reqCtx, product, relatedLimit)
	if err != nil {
		h.logger.Warn("Failed to load related products", zap.String("id", product.ID), zap.Error(err))
		related = []types.Product{}
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, productResponse{
		Product:         product,
		RelatedProducts: related,
		Success:         true,
	})
}

func (h *Handlers) createProduct(ctx *fasthttp.RequestCtx) {
	var input types.ProductInput
	if err := decodeBody(ctx, &input); err != nil {
		utils.WriteError(ctx, err)
		return
	}

	product, err := h.products.Create(utils.RequestContext(ctx), input)
	if err != nil {
		utils.WriteError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, productWriteResponse{
		Message:   "Product created successfully",
		ProductID: product.ID,
		Product:   product,
		Success:   true,
	})
}

func (h *Handlers) updateProduct(ctx *fasthttp.RequestCtx) {
	var input types.ProductInput
	if err := decodeBody(ctx, &input); err != nil {
		utils.WriteError(ctx, err)
		return
	}

	product, err := h.products.Update(utils.RequestContext(ctx), pathParam(ctx, "id"), input)
	if err != nil {
		utils.WriteError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, productWriteResponse{
		Message:   "Product updated successfully",
		ProductID: product.ID,
		Product:   product,
		Success:   true,
	})
}

func (h *Handlers) deleteProduct(ctx *fasthttp.RequestCtx) {
	if err := h.products.Delete(utils.RequestContext(ctx), pathParam(ctx, "id")); err != nil {
		utils.WriteError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, productWriteResponse{
		Message: "Product deleted successfully",
		Success: true,
	})
}

func (h *Handlers) listCategories(ctx *fasthttp.RequestCtx) {
	categories, err := h.products.Categories(utils.RequestContext(ctx))
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		utils.WriteError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"categories": categories,
		"success":    true,
	})
}
