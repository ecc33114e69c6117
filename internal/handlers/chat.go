package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/benvon/portfolio-chat/internal/logger"
	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/benvon/portfolio-chat/internal/request"
	"github.com/benvon/portfolio-chat/internal/services/ai"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxChatBodyBytes bounds what the chat endpoints will read even when no size middleware is installed.
const maxChatBodyBytes = 1 << 20

// RateLimiter admits or denies a client.
type RateLimiter interface {
	Check(ctx context.Context, identifier string) ratelimit.Decision
}

// ChatService answers one chat request.
type ChatService interface {
	Handle(ctx context.Context, req *models.ChatRequest) (*ai.ChatResponse, error)
}

// ChatHandler serves the chat endpoint in both its REST and callable shapes.
type ChatHandler struct {
	limiter RateLimiter
	proxy   ChatService
	log     *zap.Logger
}

// NewChatHandler creates a chat handler. A nil logger discards output.
func NewChatHandler(limiter RateLimiter, proxy ChatService, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{limiter: limiter, proxy: proxy, log: log}
}

// RegisterRoutes registers the REST chat route on an /api/v1 subrouter.
func (h *ChatHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)
}

// RegisterCallableRoutes registers the callable-protocol route on the root router.
func (h *ChatHandler) RegisterCallableRoutes(r *mux.Router) {
	r.HandleFunc("/chatWithGemini", h.Callable).Methods(http.MethodPost)
}

// chatRequestBody keeps every field raw so wrong JSON types degrade to "absent".
type chatRequestBody struct {
	Message json.RawMessage `json:"message"`
	History json.RawMessage `json:"history"`
	Context json.RawMessage `json:"context"`
}

// callableRequestBody is the callable protocol's request wrapper.
type callableRequestBody struct {
	Data chatRequestBody `json:"data"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if !h.admit(r) {
		h.writeRESTError(w, ai.NewError(ai.CodeResourceExhausted, ai.MsgTooManyRequests))
		return
	}
	h.decode(r, &body)

	resp, err := h.proxy.Handle(r.Context(), body.toRequest())
	if err != nil {
		h.writeRESTError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Callable handles POST /chatWithGemini using the callable-function wire format.
func (h *ChatHandler) Callable(w http.ResponseWriter, r *http.Request) {
	var body callableRequestBody
	if !h.admit(r) {
		h.writeCallableError(w, ai.NewError(ai.CodeResourceExhausted, ai.MsgTooManyRequests))
		return
	}
	h.decode(r, &body)

	resp, err := h.proxy.Handle(r.Context(), body.Data.toRequest())
	if err != nil {
		h.writeCallableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": resp})
}

// admit runs the quota check before anything about the body is looked at.
func (h *ChatHandler) admit(r *http.Request) bool {
	ip := request.ClientIP(r)
	d := h.limiter.Check(r.Context(), ip)
	if !d.Allowed {
		h.log.Warn("chat_rate_limited",
			zap.String("client", logger.SanitizeClientID(ip)),
			zap.Int("count", d.Count),
			zap.String("request_id", request.RequestIDFromContext(r.Context())),
		)
	}
	return d.Allowed
}

// decode reads the body into dst. Unreadable or malformed bodies leave dst zeroed,
// which the proxy reports as a missing message.
func (h *ChatHandler) decode(r *http.Request, dst any) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxChatBodyBytes))
	if err != nil {
		h.log.Debug("chat_body_unreadable", zap.String("error", logger.SanitizeError(err)))
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		h.log.Debug("chat_body_malformed", zap.String("error", logger.SanitizeError(err)))
	}
}

func (b chatRequestBody) toRequest() *models.ChatRequest {
	req := &models.ChatRequest{
		Message: rawString(b.Message),
		Context: rawString(b.Context),
	}
	if len(b.History) > 0 {
		var history []json.RawMessage
		if err := json.Unmarshal(b.History, &history); err == nil {
			req.History = history
		}
	}
	return req
}

// rawString returns the value when raw is a JSON string, else "".
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// toChatError normalizes any error into a typed chat error.
func toChatError(err error) *ai.Error {
	if e := ai.AsError(err); e != nil {
		return e
	}
	return &ai.Error{Code: ai.CodeInternal, Message: ai.MsgInternal, Err: err}
}

func (h *ChatHandler) writeRESTError(w http.ResponseWriter, err error) {
	e := toChatError(err)
	respondJSONError(w, e.Code.HTTPStatus(), string(e.Code), e.Message)
}

func (h *ChatHandler) writeCallableError(w http.ResponseWriter, err error) {
	e := toChatError(err)
	writeJSON(w, e.Code.HTTPStatus(), map[string]any{
		"error": callableError{Status: e.Code.CallableStatus(), Message: sanitizeErrorMessage(e.Message)},
	})
}
