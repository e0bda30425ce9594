package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/api/transport"
	"github.com/taskmirror/backend/internal/infrastructure/monitor"
	"github.com/taskmirror/backend/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
}

func NewHealthHandler(mon *monitor.Monitor, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

type healthReport struct {
	Timestamp  time.Time `json:"timestamp"`
	Database   bool      `json:"database"`
	Redis      bool      `json:"redis"`
	Remote     bool      `json:"remote"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	report := healthReport{
		Timestamp:  time.Now().UTC(),
		Database:   status.Database,
		Redis:      status.Redis,
		Remote:     status.Remote,
		Buffer:     status.Buffer,
		BufferSize: status.BufferSize,
	}

	// An unreachable remote authority is degraded-but-serving: mutations
	// keep queueing locally. Only a dead local database is fatal.
	if !status.Database {
		h.writeEnvelope(ctx, http.StatusServiceUnavailable,
			transport.NewError("DEGRADED", "record store unreachable", report))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}
