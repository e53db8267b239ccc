package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/doorcount/backend/api/transport"
	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/pkg/httpcontext"
	archiveUC "github.com/doorcount/backend/usecase/archive"
)

type ArchiveHandler struct {
	baseHandler
	uc *archiveUC.UseCase
}

func NewArchiveHandler(uc *archiveUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List archived sessions, newest first
// @Tags archives
// @Router /api/v1/archives [get]
func (h *ArchiveHandler) List(ctx *fasthttp.RequestCtx) {
	limit := queryInt(ctx, "limit", 50)
	offset := queryInt(ctx, "offset", 0)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summaries, err := h.uc.List(stdCtx, limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, summaries)
}

// @Summary One archived session with its interval breakdown
// @Tags archives
// @Router /api/v1/archives/{id} [get]
func (h *ArchiveHandler) Get(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "id is required", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summary, intervals, err := h.uc.Get(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"summary":   summary,
		"intervals": intervals,
	})
}

func queryInt(ctx *fasthttp.RequestCtx, key string, fallback int) int {
	raw := string(ctx.QueryArgs().Peek(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
