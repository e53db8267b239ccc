package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/doorcount/backend/api/transport"
	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/pkg/httpcontext"
	dashboardUC "github.com/doorcount/backend/usecase/dashboard"
)

type DashboardHandler struct {
	baseHandler
	uc *dashboardUC.UseCase
}

func NewDashboardHandler(uc *dashboardUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary One business day aggregated into 15-minute buckets
// @Tags dashboard
// @Router /api/v1/dashboard/{date} [get]
func (h *DashboardHandler) Day(ctx *fasthttp.RequestCtx) {
	date, _ := ctx.UserValue("date").(string)
	if date == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "date is required", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.uc.LoadDate(stdCtx, date)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}
