package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/api/transport"
	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter == nil {
		return context.WithCancel(context.Background())
	}
	return h.adapter.Attach(ctx)
}

// decodeBody unmarshals the request body into dst, answering 400 itself
// when the payload is not valid JSON.
func (h baseHandler) decodeBody(ctx *fasthttp.RequestCtx, dst interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		h.writeEnvelope(ctx, http.StatusBadRequest,
			transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return false
	}
	return true
}

func (h baseHandler) writeEnvelope(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	body, err := json.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(http.StatusInternalServerError)
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.writeEnvelope(ctx, status, transport.NewSuccess(data))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	h.writeEnvelope(ctx, status, transport.NewError(code, err.Error(), nil))
}

var statusByCode = map[domain.ErrorCode]int{
	domain.ErrCodeInvalid:     http.StatusBadRequest,
	domain.ErrCodeNotFound:    http.StatusNotFound,
	domain.ErrCodeGone:        http.StatusGone,
	domain.ErrCodeConflict:    http.StatusConflict,
	domain.ErrCodeOffline:     http.StatusServiceUnavailable,
	domain.ErrCodeUnavailable: http.StatusServiceUnavailable,
	domain.ErrCodeTransport:   http.StatusBadGateway,
}

func mapError(err error) (int, string) {
	for code, status := range statusByCode {
		if domain.IsDomainError(err, code) {
			return status, string(code)
		}
	}
	return http.StatusInternalServerError, string(domain.ErrCodeInternal)
}
