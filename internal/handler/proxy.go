package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/defernest/proxyflare/internal/model"
	"github.com/defernest/proxyflare/internal/service"
)

// ProxyHandler binds the forward-proxy pipeline to the Echo server.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request to the target named by the caller and
// streams the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		URL:      req.URL,
		Header:   req.Header,
		Body:     req.Body,
		ClientIP: c.RealIP(),
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	if resp.Body == nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	// Stream the target body directly to the caller. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. This is an inherent trade-off of
	// streaming proxies — we log the error for observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// mapError converts a pipeline failure into its fixed plain-text response.
// The bodies are constant: transport diagnostics stay in the logs and
// never reach the caller. CORS headers are set on errors too, so
// browser clients behind a preflight can still read them.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	h.service.SetCORSHeaders(c.Response().Header())

	switch {
	case errors.Is(err, service.ErrMissingTarget):
		return c.String(http.StatusBadRequest, "Target URL not found")
	case errors.Is(err, service.ErrInvalidTarget):
		return c.String(http.StatusBadRequest, "Invalid target URL")
	default:
		return c.String(http.StatusInternalServerError, "Failed to fetch target URL")
	}
}
