package service

import "errors"

// Pipeline failure kinds. Each one is terminal for the invocation and maps
// to a fixed status/body pair at the handler layer; the fixed bodies keep
// internal network detail out of client-visible responses.
var (
	// ErrMissingTarget means neither the target header, the url query
	// parameter, nor the request path carried a destination URL.
	ErrMissingTarget = errors.New("target URL not found")

	// ErrInvalidTarget means a destination was supplied but does not parse
	// as an absolute URL.
	ErrInvalidTarget = errors.New("invalid target URL")

	// ErrUpstreamUnreachable means the single outbound fetch failed at the
	// transport level (DNS, connect, TLS, or timeout).
	ErrUpstreamUnreachable = errors.New("failed to fetch target URL")
)
