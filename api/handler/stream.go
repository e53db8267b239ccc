package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/doorcount/backend/pkg/httpcontext"
	"github.com/doorcount/backend/repository"
	counterUC "github.com/doorcount/backend/usecase/counter"
)

// StreamHandler pushes live occupancy over Server-Sent Events. Every change
// notification triggers a fresh state push; heartbeats keep idle connections
// from being reaped by proxies.
type StreamHandler struct {
	baseHandler
	uc        *counterUC.UseCase
	notifier  repository.ChangeNotifier
	heartbeat time.Duration
}

func NewStreamHandler(uc *counterUC.UseCase, notifier repository.ChangeNotifier, adapter *httpcontext.Adapter, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		notifier:    notifier,
		heartbeat:   15 * time.Second,
	}
}

// @Summary Live occupancy stream (SSE)
// @Tags counter
// @Router /api/v1/counter/stream [get]
func (h *StreamHandler) Live(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		streamCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := h.notifier.Subscribe(streamCtx)
		if err != nil {
			h.logger.Warn("sse subscribe failed", zap.Error(err))
			return
		}

		if !h.push(streamCtx, w) {
			return
		}

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-streamCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if !h.push(streamCtx, w) {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

// push writes the current state as one SSE event. Returns false when the
// client is gone.
func (h *StreamHandler) push(ctx context.Context, w *bufio.Writer) bool {
	state, err := h.uc.Current(ctx)
	if err != nil {
		h.logger.Warn("sse state fetch failed", zap.Error(err))
		return true
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return true
	}
	if _, err := fmt.Fprintf(w, "event: count\ndata: %s\n\n", payload); err != nil {
		return false
	}
	return w.Flush() == nil
}
