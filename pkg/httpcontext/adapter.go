package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/taskmirror/backend/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// Key identifies request metadata stored on the derived context.
type Key string

const KeyRemoteAddr Key = "remote_addr"

// Adapter derives a deadline-bound stdlib context from a fasthttp request
// and threads the request ID through both the context and the response.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	id := requestID(ctx)
	ctx.Response.Header.Set(requestIDHeader, id)

	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	stdCtx = logger.ContextWithRequestID(stdCtx, id)
	if addr := ctx.RemoteAddr(); addr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, addr.String())
	}
	return stdCtx, cancel
}

// requestID echoes the caller's ID when one is supplied, otherwise mints one.
func requestID(ctx *fasthttp.RequestCtx) string {
	if ctx != nil {
		if id := strings.TrimSpace(string(ctx.Request.Header.Peek(requestIDHeader))); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
