package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/domain"
)

// Config carries the remote authority endpoint settings.
type Config struct {
	BaseURL       string
	HealthTimeout time.Duration
	BatchTimeout  time.Duration
}

// Client talks to the remote authority over its two endpoints. Timeouts are
// the only early-exit path for an in-flight call; a timeout is reported as
// a transport failure like any other network error.
type Client struct {
	http   *fasthttp.Client
	cfg    Config
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http: &fasthttp.Client{
			MaxIdleConnDuration: time.Minute,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Healthy probes GET /health. Any non-error response within the timeout
// counts as connected; this never returns an error.
func (c *Client) Healthy() bool {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + "/health")
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.http.DoTimeout(req, resp, c.cfg.HealthTimeout); err != nil {
		c.logger.Debug("health probe failed", zap.Error(err))
		return false
	}
	return resp.StatusCode() < http.StatusBadRequest
}

// PushBatch dispatches one batch of queue entries to POST /batch.
func (c *Client) PushBatch(batch BatchRequest) (*BatchResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + "/batch")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.http.DoTimeout(req, resp, c.cfg.BatchTimeout); err != nil {
		return nil, domain.WrapError(domain.ErrCodeTransport, "batch dispatch failed", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, domain.WrapError(domain.ErrCodeTransport, "batch dispatch rejected",
			fmt.Errorf("remote returned status %d", resp.StatusCode()))
	}

	var parsed BatchResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrCodeTransport, "malformed batch response", err)
	}
	return &parsed, nil
}
