package api

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	inquirySubmitted       = "Inquiry submitted successfully"
	inquirySubmittedNoMail = "Inquiry submitted successfully (email notifications disabled)"
)

type inquiryResponse struct {
	Success   bool   `json:"success"`
	InquiryID string `json:"inquiryId"`
	Message   string `json:"message"`
}

type inquiryListResponse struct {
	types.InquiryList
	Success bool `json:"success"`
}

func (h *Handlers) submitInquiry(ctx *fasthttp.RequestCtx) {
	h.submit(ctx, h.inquiryGuard, types.InquirySourceWebsite)
}

func (h *Handlers) submitContact(ctx *fasthttp.RequestCtx) {
	h.submit(ctx, h.contactGuard, types.InquirySourceContactForm)
}

func (h *Handlers) submit(ctx *fasthttp.RequestCtx, guard ratelimit.Guard, source string) {
	req := ratelimit.FromRequestCtx(ctx)
	meta := types.RequestMeta{
		IPAddress: h.identity(req),
		UserAgent: string(ctx.UserAgent()),
	}

	if _, err := guard(req); err != nil {
		h.logger.Warn("Inquiry rate limit exceeded",
			zap.String("source", source),
			zap.String("identity", meta.IPAddress))
		utils.WriteError(ctx, err)
		return
	}

	var input types.InquiryInput
	if err := decodeBody(ctx, &input); err != nil {
		utils.WriteError(ctx, err)
		return
	}

	inquiry, err := h.inquiries.Submit(utils.RequestContext(ctx), input, source, meta)
	if err != nil {
		utils.WriteError(ctx, err)
		return
	}

	message := inquirySubmitted
	if !h.inquiries.NotificationsEnabled() {
		message = inquirySubmittedNoMail
	}

	utils.SetNoCache(ctx)
	utils.WriteJSON(ctx, fasthttp.StatusCreated, inquiryResponse{
		Success:   true,
		InquiryID: inquiry.ID,
		Message:   message,
	})
}

func (h *Handlers) listInquiries(ctx *fasthttp.RequestCtx) {
	list, err := h.inquiries.List(utils.RequestContext(ctx), types.InquiryFilter{
		Page:   utils.QueryInt(ctx, "page", 1),
		Limit:  utils.QueryInt(ctx, "limit", 0),
		Status: string(ctx.QueryArgs().Peek("status")),
	})
	if err != nil {
		h.logger.Error("Failed to list inquiries", zap.Error(err))
		utils.WriteError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, inquiryListResponse{InquiryList: *list, Success: true})
}

func (h *Handlers) contactStatus(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"message":   "Contact API endpoint is working",
		"methods":   []string{fasthttp.MethodPost},
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
