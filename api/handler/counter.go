package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/doorcount/backend/api/transport"
	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/pkg/httpcontext"
	counterUC "github.com/doorcount/backend/usecase/counter"
)

type CounterHandler struct {
	baseHandler
	uc *counterUC.UseCase
}

func NewCounterHandler(uc *counterUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CounterHandler {
	return &CounterHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Current occupancy
// @Tags counter
// @Router /api/v1/counter [get]
func (h *CounterHandler) Current(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Current(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Record an entry or exit
// @Tags counter
// @Router /api/v1/counter/record [post]
func (h *CounterHandler) Record(ctx *fasthttp.RequestCtx) {
	var req transport.RecordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	event, err := h.uc.Record(stdCtx, domain.Gender(req.Gender), domain.Kind(req.Kind))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, event)
}

// @Summary Archive the session and zero the counter
// @Tags counter
// @Router /api/v1/counter/reset [post]
func (h *CounterHandler) Reset(ctx *fasthttp.RequestCtx) {
	var req transport.ResetRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || !req.Confirm {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "reset requires confirmation", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summary, err := h.uc.Reset(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if summary == nil {
		h.respondSuccess(ctx, http.StatusOK, map[string]string{"result": "nothing to archive"})
		return
	}
	h.respondSuccess(ctx, http.StatusOK, summary)
}
