package service

import (
	"net/url"
	"strings"

	"github.com/defernest/proxyflare/internal/model"
)

const (
	// TargetHeader carries the destination URL and takes precedence over
	// the query parameter.
	TargetHeader = "X-Target-URL"

	// TargetParam is the invocation-URL query parameter naming the
	// destination.
	TargetParam = "url"
)

// reservedParams are query parameters that belong to the proxy itself:
// the routing parameter and client-side cache busters. They are stripped
// from the target URL so they never reach the target server.
var reservedParams = map[string]bool{
	"url": true,
	"_cb": true,
	"_t":  true,
}

// ResolveTarget extracts and validates the destination URL from an inbound
// request. Extraction order: X-Target-URL header, then the url query
// parameter, then a URL embedded in the request path (/https://example.com/...).
//
// The returned URL has the reserved parameters removed from its query
// string, with the order of surviving parameters preserved, and any
// non-reserved parameters from the invocation URL appended after them.
func ResolveTarget(pr *model.ProxyRequest) (*url.URL, error) {
	raw := pr.Header.Get(TargetHeader)
	if raw == "" {
		raw = pr.URL.Query().Get(TargetParam)
	}
	if raw == "" {
		if p := strings.TrimPrefix(pr.URL.Path, "/"); strings.HasPrefix(p, "http") {
			raw = p
		}
	}
	if raw == "" {
		return nil, ErrMissingTarget
	}

	target, err := url.Parse(raw)
	if err != nil || !target.IsAbs() || target.Host == "" {
		return nil, ErrInvalidTarget
	}

	own := stripReservedParams(target.RawQuery)
	extra := stripReservedParams(pr.URL.RawQuery)
	target.RawQuery = joinQueries(own, extra)
	return target, nil
}

// stripReservedParams removes reserved pairs from a raw query string while
// keeping the remaining pairs verbatim and in order. url.Values is not
// usable here: Encode sorts keys and would reorder the target's query.
func stripReservedParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if reservedParams[key] {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func joinQueries(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "&" + b
	}
}
