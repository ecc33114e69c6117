package request

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestResolveClientIP_TrustedProxy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{"fastly", map[string]string{"Fastly-Client-IP": "7.7.7.7"}, "", "7.7.7.7"},
		{"fastly over xff", map[string]string{"Fastly-Client-IP": "7.7.7.7", "X-Forwarded-For": "1.2.3.4"}, "", "7.7.7.7"},
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "", "1.2.3.4"},
		{"x-forwarded-for first", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8 "}, "", "1.2.3.4"},
		{"x-forwarded-for empty first hop", map[string]string{"X-Forwarded-For": " , 5.6.7.8", "X-Real-IP": "9.9.9.9"}, "", "9.9.9.9"},
		{"x-real-ip", map[string]string{"X-Real-IP": "9.9.9.9"}, "", "9.9.9.9"},
		{"remote addr strips port", nil, "10.0.0.1:12345", "10.0.0.1"},
		{"remote addr ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "10.0.0.2", "10.0.0.2"},
		{"nothing", nil, " ", ""},
		{"xff over xri", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "9.9.9.9"}, "", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("POST", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			got := ResolveClientIP(r, true)
			if got != tt.wantIP {
				t.Errorf("ResolveClientIP() = %q, want %q", got, tt.wantIP)
			}
		})
	}
}

func TestResolveClientIP_UntrustedIgnoresHeaders(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "203.0.113.50:41000"
	r.Header.Set("Fastly-Client-IP", "7.7.7.7")
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	r.Header.Set("X-Real-IP", "9.9.9.9")
	if got := ResolveClientIP(r, false); got != "203.0.113.50" {
		t.Errorf("ResolveClientIP() = %q, want the peer address", got)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("ClientIP() without resolved value = %q, want 10.0.0.1", got)
	}

	r = r.WithContext(WithClientIP(r.Context(), "7.7.7.7"))
	if got := ClientIP(r); got != "7.7.7.7" {
		t.Errorf("ClientIP() = %q, want resolved 7.7.7.7", got)
	}

	r = r.WithContext(WithClientIP(r.Context(), ""))
	if got := ClientIP(r); got != "" {
		t.Errorf("ClientIP() = %q, want empty resolved value kept", got)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	t.Parallel()
	id := uuid.NewString()
	ctx := WithRequestID(context.Background(), id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("RequestIDFromContext() = %q, want %q", got, id)
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	t.Parallel()
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}

func TestRequestIDFromContext_WrongType(t *testing.T) {
	t.Parallel()
	ctx := context.WithValue(context.Background(), RequestIDContextKey(), 42)
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty when wrong type", got)
	}
}
