// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest represents an inbound request to be forwarded to the target.
// All fields are transient and scoped to a single invocation.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	URL      *url.URL // full invocation URL, including query string
	Header   http.Header
	Body     io.ReadCloser
	ClientIP string // caller's observed address, as reported by the server
}

// ProxyResponse represents the response to be streamed back to the caller.
// Body is nil for synthesized responses (e.g. a preflight acknowledgment).
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
