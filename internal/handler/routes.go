package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defernest/proxyflare/internal/config"
	"github.com/defernest/proxyflare/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. The
// health and status routes take precedence; every other path is the
// forward-proxy wildcard.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(
			m.Registry,
			promhttp.HandlerOpts{},
		)))
	}

	e.Any("/*", proxy.Handle)
}
