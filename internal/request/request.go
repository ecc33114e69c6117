package request

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// RequestIDContextKey returns the context key used for the request ID. Exposed for tests that inject non-string values.
func RequestIDContextKey() contextKey { return requestIDContextKey }

const clientIPContextKey contextKey = "client_ip"

// WithClientIP returns a context carrying the resolved client IP. An empty ip is kept and
// means the client has no identity.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey, ip)
}

// ClientIP returns the client IP used as the rate limit identity: the value resolved
// earlier in the chain when present, otherwise the peer address without its port.
// Returns "" when nothing usable is present.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok {
		return ip
	}
	return hostOnly(r.RemoteAddr)
}

// ResolveClientIP picks the client IP for r. Forwarding headers are honoured only when
// trustProxyHeaders is set, since any client can write them: the CDN header wins, then the
// first X-Forwarded-For hop, then X-Real-IP. The peer address is the last resort.
func ResolveClientIP(r *http.Request, trustProxyHeaders bool) string {
	if !trustProxyHeaders {
		return hostOnly(r.RemoteAddr)
	}
	if fci := strings.TrimSpace(r.Header.Get("Fastly-Client-IP")); fci != "" {
		return fci
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return hostOnly(r.RemoteAddr)
}

func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the request ID, or "" if missing or wrong type.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
