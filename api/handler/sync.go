package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/internal/services"
	"github.com/taskmirror/backend/pkg/httpcontext"
	appLogger "github.com/taskmirror/backend/pkg/logger"
	"github.com/taskmirror/backend/repository"
)

type SyncHandler struct {
	baseHandler
	trigger *services.SyncTrigger
	queue   repository.QueueRepository
}

func NewSyncHandler(trigger *services.SyncTrigger, queue repository.QueueRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		baseHandler: newBaseHandler(adapter, logger),
		trigger:     trigger,
		queue:       queue,
	}
}

// @Summary Trigger a sync run
// @Tags sync
// @Router /api/v1/sync/run [post]
func (h *SyncHandler) Run(ctx *fasthttp.RequestCtx) {
	// A run can outlive the request timeout (batch dispatch alone allows
	// 20s), so it gets the trigger's own deadline instead.
	result, err := h.trigger.TriggerNow()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusAccepted, result)
}

// @Summary Sync engine status
// @Tags sync
// @Router /api/v1/sync/status [get]
func (h *SyncHandler) Status(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	last, err := h.trigger.LastReport(stdCtx)
	if err != nil {
		appLogger.WithRequestID(stdCtx, h.logger).Warn("failed to read last sync report", zap.Error(err))
	}

	depth, err := h.queue.Size(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	payload := map[string]interface{}{
		"state":       h.trigger.State().String(),
		"queue_depth": depth,
		"last_run":    last,
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}
