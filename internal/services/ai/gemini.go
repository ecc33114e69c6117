package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/request"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini model
const DefaultGeminiModel = "gemini-2.5-flash"

// ErrNoCandidates is returned when the upstream produced no reply text
var ErrNoCandidates = errors.New("no candidates in response")

// GeminiModel sends conversations to the Gemini API. The persona is replayed as the first two turns.
type GeminiModel struct {
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	debugMode  bool
}

// NewGeminiModel creates a Gemini chat model
func NewGeminiModel(cfg ModelConfig) *GeminiModel {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiModel{
		model:      model,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.httpClient(),
		logger:     cfg.logger(),
		debugMode:  cfg.DebugMode,
	}
}

// Name returns the provider name
func (m *GeminiModel) Name() string {
	return "gemini"
}

// Send performs one non-streaming generation over the full turn sequence
func (m *GeminiModel) Send(ctx context.Context, apiKey string, conv Conversation) (string, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: m.httpClient,
	}
	if m.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: m.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", &UpstreamError{Provider: m.Name(), Message: err.Error(), Err: err}
	}

	turns := conv.Turns()
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}

	requestID := request.RequestIDFromContext(ctx)
	if m.debugMode {
		m.logger.Debug("llm_api_request",
			zap.String("provider", m.Name()),
			zap.String("model", m.model),
			zap.Int("turn_count", len(contents)),
			zap.Strings("turn_previews", TurnPreviews(turns, false)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, m.model, contents, nil)
	latency := time.Since(start)
	if err != nil {
		if m.debugMode {
			m.logger.Debug("llm_api_error",
				zap.String("provider", m.Name()),
				zap.String("model", m.model),
				zap.Error(err),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		return "", geminiError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &UpstreamError{Provider: m.Name(), Message: ErrNoCandidates.Error(), Err: ErrNoCandidates}
	}
	text := resp.Text()

	if m.debugMode {
		m.logger.Debug("llm_api_response",
			zap.String("provider", m.Name()),
			zap.String("model", m.model),
			zap.Int("response_length", len(text)),
			zap.String("response_preview", SanitizeResponse(text, true)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return text, nil
}

// geminiError keeps the API's own message when the SDK returns a structured error.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &UpstreamError{Provider: "gemini", StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return &UpstreamError{Provider: "gemini", Message: strings.TrimSpace(err.Error()), Err: err}
}

// RegisterGemini registers the Gemini provider with the registry
func RegisterGemini(registry *ProviderRegistry) {
	registry.Register("gemini", func(cfg ModelConfig) (ChatModel, error) {
		if cfg.Timeout < 0 {
			return nil, fmt.Errorf("gemini timeout cannot be negative")
		}
		return NewGeminiModel(cfg), nil
	})
}
