package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceContextPropagation verifies that the quota check span joins the inbound request trace
func TestTraceContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	InstallPropagator()

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{})

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("portfolio-chat"))
	r.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(r.Context(), "192.0.2.10") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	tests := []struct {
		name        string
		traceParent string
		wantTraceID string
	}{
		{
			name: "without existing trace ID",
		},
		{
			name:        "with existing trace ID",
			traceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantTraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("Expected status OK, got %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Errorf("Failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			var check, server *tracetest.SpanStub
			for i := range spans {
				switch spans[i].Name {
				case "ratelimit.check":
					check = &spans[i]
				default:
					server = &spans[i]
				}
			}
			if check == nil || server == nil {
				t.Fatalf("Expected a server span and a ratelimit.check span, got %d spans", len(spans))
			}
			if check.Parent.SpanID() != server.SpanContext.SpanID() {
				t.Error("Expected ratelimit.check to be a child of the request span")
			}
			if tt.wantTraceID != "" && server.SpanContext.TraceID().String() != tt.wantTraceID {
				t.Errorf("Expected trace ID %s, got %s", tt.wantTraceID, server.SpanContext.TraceID())
			}
		})
	}
}
