package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/benvon/portfolio-chat/internal/services/ai"
	"github.com/gorilla/mux"
)

// stubChat records the requests it receives.
type stubChat struct {
	mu    sync.Mutex
	reqs  []*models.ChatRequest
	reply string
	err   error
}

func (s *stubChat) Handle(_ context.Context, req *models.ChatRequest) (*ai.ChatResponse, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ai.NewError(ai.CodeInvalidArgument, ai.MsgMessageRequired)
	}
	return &ai.ChatResponse{Response: s.reply}, nil
}

func (s *stubChat) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func newChatRouter(max int, svc ChatService) *mux.Router {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{MaxRequests: max, Window: time.Hour})
	h := NewChatHandler(limiter, svc, nil)
	r := mux.NewRouter()
	h.RegisterCallableRoutes(r)
	h.RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())
	return r
}

func doRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestChat_Success(t *testing.T) {
	t.Parallel()

	svc := &stubChat{reply: "I write Go."}
	r := newChatRouter(20, svc)

	req := newTestRequest(http.MethodPost, "/api/v1/chat", map[string]any{
		"message": "What do you write?",
		"history": []any{map[string]string{"role": "user", "text": "hi"}},
		"context": "Project: chat",
	})
	w := doRequest(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if success, _ := body["success"].(bool); !success {
		t.Error("Expected success to be true")
	}
	data, _ := body["data"].(map[string]any)
	if data["response"] != "I write Go." {
		t.Errorf("Expected response 'I write Go.', got %v", data["response"])
	}

	got := svc.reqs[0]
	if got.Message != "What do you write?" || got.Context != "Project: chat" || len(got.History) != 1 {
		t.Errorf("Unexpected request passed to proxy: %+v", got)
	}
}

func TestChat_LenientFieldTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantHistory int
		wantContext string
	}{
		{"non-array history ignored", `{"message":"hi","history":{"role":"user"}}`, "hi", 0, ""},
		{"non-string context ignored", `{"message":"hi","context":42}`, "hi", 0, ""},
		{"non-string message is absent", `{"message":7}`, "", 0, ""},
		{"malformed json", `{"message":`, "", 0, ""},
		{"empty body", ``, "", 0, ""},
		{"history entries kept raw", `{"message":"hi","history":[1,"x",{"role":"model","text":"ok"}]}`, "hi", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubChat{reply: "ok"}
			r := newChatRouter(20, svc)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			doRequest(r, req)

			if svc.calls() != 1 {
				t.Fatalf("Expected 1 proxy call, got %d", svc.calls())
			}
			got := svc.reqs[0]
			if got.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, got.Message)
			}
			if len(got.History) != tt.wantHistory {
				t.Errorf("Expected %d history entries, got %d", tt.wantHistory, len(got.History))
			}
			if got.Context != tt.wantContext {
				t.Errorf("Expected context %q, got %q", tt.wantContext, got.Context)
			}
		})
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid argument", ai.NewError(ai.CodeInvalidArgument, ai.MsgMessageRequired), http.StatusBadRequest, "invalid-argument", ai.MsgMessageRequired},
		{"failed precondition", ai.NewError(ai.CodeFailedPrecondition, ai.MsgNotConfigured), http.StatusBadRequest, "failed-precondition", ai.MsgNotConfigured},
		{"internal", &ai.Error{Code: ai.CodeInternal, Message: "quota exceeded upstream"}, http.StatusInternalServerError, "internal", "quota exceeded upstream"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal", ai.MsgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newChatRouter(20, &stubChat{err: tt.err})
			w := doRequest(r, newTestRequest(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"}))
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			body := decodeBody(t, w)
			if success, _ := body["success"].(bool); success {
				t.Error("Expected success to be false")
			}
			if body["error"] != tt.wantCode {
				t.Errorf("Expected error %q, got %v", tt.wantCode, body["error"])
			}
			if body["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %v", tt.wantMsg, body["message"])
			}
		})
	}
}

func TestChat_LongUpstreamMessageTruncated(t *testing.T) {
	t.Parallel()

	long := &ai.Error{Code: ai.CodeInternal, Message: strings.Repeat("x", maxErrorMessageLength+100)}
	want := strings.Repeat("x", maxErrorMessageLength) + "..."

	tests := []struct {
		name string
		path string
		body any
		msg  func(map[string]any) any
	}{
		{
			name: "rest",
			path: "/api/v1/chat",
			body: map[string]string{"message": "hi"},
			msg:  func(b map[string]any) any { return b["message"] },
		},
		{
			name: "callable",
			path: "/chatWithGemini",
			body: map[string]any{"data": map[string]string{"message": "hi"}},
			msg: func(b map[string]any) any {
				e, _ := b["error"].(map[string]any)
				return e["message"]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newChatRouter(20, &stubChat{err: long})
			w := doRequest(r, newTestRequest(http.MethodPost, tt.path, tt.body))
			if w.Code != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", w.Code)
			}
			got, _ := tt.msg(decodeBody(t, w)).(string)
			if got != want {
				t.Errorf("Expected message truncated to %d chars plus ellipsis, got length %d", maxErrorMessageLength, len(got))
			}
		})
	}
}

func TestChat_RateLimitedBeforeValidation(t *testing.T) {
	t.Parallel()

	svc := &stubChat{reply: "ok"}
	r := newChatRouter(2, svc)

	send := func(body any) *httptest.ResponseRecorder {
		req := newTestRequest(http.MethodPost, "/api/v1/chat", body)
		req.RemoteAddr = "203.0.113.9:4000"
		return doRequest(r, req)
	}

	for i := 0; i < 2; i++ {
		if w := send(map[string]string{"message": "hi"}); w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	// Even an invalid request counts against the quota and is rejected as over-limit.
	w := send(map[string]string{})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "resource-exhausted" || body["message"] != ai.MsgTooManyRequests {
		t.Errorf("Unexpected 429 body: %v", body)
	}
	if svc.calls() != 2 {
		t.Errorf("Expected proxy to be called 2 times, got %d", svc.calls())
	}

	// A different client has its own quota.
	req := newTestRequest(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"})
	req.RemoteAddr = "198.51.100.1:4000"
	if w := doRequest(r, req); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for another client, got %d", w.Code)
	}
}

func TestCallable_Success(t *testing.T) {
	t.Parallel()

	svc := &stubChat{reply: "Hello from the assistant."}
	r := newChatRouter(20, svc)

	w := doRequest(r, newTestRequest(http.MethodPost, "/chatWithGemini", map[string]any{
		"data": map[string]any{"message": "hi", "context": "projects"},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Result struct {
			Response string `json:"response"`
		} `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Result.Response != "Hello from the assistant." {
		t.Errorf("Expected callable result, got %+v", body)
	}
	if svc.reqs[0].Context != "projects" {
		t.Errorf("Expected context 'projects', got %q", svc.reqs[0].Context)
	}
}

func TestCallable_Errors(t *testing.T) {
	t.Parallel()

	r := newChatRouter(1, &stubChat{reply: "ok"})
	send := func() *httptest.ResponseRecorder {
		req := newTestRequest(http.MethodPost, "/chatWithGemini", map[string]any{"data": map[string]any{}})
		req.RemoteAddr = "192.0.2.10:4000"
		return doRequest(r, req)
	}

	type callableBody struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode := func(w *httptest.ResponseRecorder) callableBody {
		var b callableBody
		if err := json.NewDecoder(w.Body).Decode(&b); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return b
	}

	w := send()
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if b := decode(w); b.Error.Status != "INVALID_ARGUMENT" || b.Error.Message != ai.MsgMessageRequired {
		t.Errorf("Unexpected error body: %+v", b)
	}

	w = send()
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	if b := decode(w); b.Error.Status != "RESOURCE_EXHAUSTED" || b.Error.Message != ai.MsgTooManyRequests {
		t.Errorf("Unexpected error body: %+v", b)
	}
}

func TestChat_NoIdentityFailsOpen(t *testing.T) {
	t.Parallel()

	svc := &stubChat{reply: "ok"}
	r := newChatRouter(1, svc)

	for i := 0; i < 3; i++ {
		req := newTestRequest(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"})
		req.RemoteAddr = ""
		if w := doRequest(r, req); w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := newChatRouter(20, &stubChat{})
	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
