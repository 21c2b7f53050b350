// Package service implements the forward-proxy pipeline: target
// resolution, request sanitization, the single outbound fetch, and
// response composition.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/defernest/proxyflare/internal/config"
	"github.com/defernest/proxyflare/internal/model"
)

// defaultClientIP is forwarded when the caller's address is unknown.
const defaultClientIP = "127.0.0.1"

// forwardedForOverride lets a client pin the outbound X-Forwarded-For value.
const forwardedForOverride = "X-My-X-Forwarded-For"

// droppedRequestHeaders never reach the target: proxy metadata, caller
// credentials (which authenticate the caller to this proxy, not to an
// arbitrary target), and host-supplied connection signals. Keys are in
// canonical form.
var droppedRequestHeaders = map[string]bool{
	"X-Target-Url":         true,
	"Authorization":        true,
	"Host":                 true,
	"X-Forwarded-For":      true,
	"X-My-X-Forwarded-For": true,
	"X-Real-Ip":            true,
	"True-Client-Ip":       true,
	"Cf-Connecting-Ip":     true,
	"Cf-Ipcountry":         true,
	"Cf-Ray":               true,
	"Cf-Visitor":           true,
}

// droppedResponseHeaders describe the target's original transport framing.
// The body is re-streamed under new framing, so stale values would make
// clients mis-parse it. Keys are in canonical form.
var droppedResponseHeaders = map[string]bool{
	"Content-Encoding":  true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
}

// Fetcher issues exactly one outbound request and returns the raw response.
// Implementations must not follow redirects. The context controls the
// lifetime of the fetch: when the caller disconnects, the fetch is
// abandoned.
type Fetcher interface {
	DoStream(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxyResponse, error)
}

// ProxyService runs the request-transform-and-forward pipeline. It holds
// no mutable state; concurrent invocations are fully independent.
type ProxyService struct {
	fetcher Fetcher
	cfg     *config.Config
	logger  *slog.Logger
}

// NewProxyService creates a ProxyService backed by the given fetcher.
func NewProxyService(f Fetcher, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		fetcher: f,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
	}
}

// Forward runs the pipeline for a single inbound request. The caller is
// responsible for closing the response body when non-nil.
//
// An OPTIONS request is answered with a synthesized 204 preflight
// acknowledgment; the target is never contacted.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if pr.Method == http.MethodOptions {
		return s.preflight(), nil
	}

	target, err := ResolveTarget(pr)
	if err != nil {
		return nil, err
	}

	header := s.buildOutboundHeaders(pr)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"target_host", target.Host,
	)

	var body io.Reader
	if pr.Body != nil && pr.Method != http.MethodGet && pr.Method != http.MethodHead {
		body = pr.Body
	}

	resp, err := s.fetcher.DoStream(pr.Ctx, pr.Method, target.String(), header, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnreachable, err)
	}

	resp.Header = s.composeResponseHeaders(resp.Header)
	return resp, nil
}

// preflight builds the CORS handshake response: 204, no body, policy
// headers only.
func (s *ProxyService) preflight() *model.ProxyResponse {
	h := make(http.Header, 3)
	s.SetCORSHeaders(h)
	return &model.ProxyResponse{
		StatusCode: http.StatusNoContent,
		Header:     h,
	}
}

// buildOutboundHeaders copies the inbound headers minus the dropped set
// and sets the forwarded-client-IP header. The X-My-X-Forwarded-For
// override, when present, wins over the observed address.
func (s *ProxyService) buildOutboundHeaders(pr *model.ProxyRequest) http.Header {
	dst := make(http.Header, len(pr.Header))
	for key, vals := range pr.Header {
		if droppedRequestHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[http.CanonicalHeaderKey(key)] = vals
	}

	fwd := pr.Header.Get(forwardedForOverride)
	if fwd == "" {
		fwd = pr.ClientIP
	}
	if fwd == "" {
		fwd = defaultClientIP
	}
	dst.Set("X-Forwarded-For", fwd)

	return dst
}

// composeResponseHeaders strips the target's transport-framing headers and
// injects the CORS policy.
func (s *ProxyService) composeResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src)+3)
	for key, vals := range src {
		if droppedResponseHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = vals
	}
	s.SetCORSHeaders(dst)
	return dst
}

// SetCORSHeaders writes the three configured CORS policy headers onto dst,
// falling back to the documented defaults for unset values. Error
// responses use it too, so preflight-driven clients can read them.
func (s *ProxyService) SetCORSHeaders(dst http.Header) {
	origin := s.cfg.CORS.AllowOrigin
	if origin == "" {
		origin = config.DefaultAllowOrigin
	}
	methods := s.cfg.CORS.AllowMethods
	if methods == "" {
		methods = config.DefaultAllowMethods
	}
	headers := s.cfg.CORS.AllowHeaders
	if headers == "" {
		headers = config.DefaultAllowHeaders
	}

	dst.Set("Access-Control-Allow-Origin", origin)
	dst.Set("Access-Control-Allow-Methods", methods)
	dst.Set("Access-Control-Allow-Headers", headers)
}
