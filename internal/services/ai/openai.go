package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/request"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIModel sends conversations to an OpenAI-compatible chat completions API.
// The persona goes in the system role; model turns become assistant messages.
type OpenAIModel struct {
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	debugMode  bool
}

// NewOpenAIModel creates an OpenAI chat model
func NewOpenAIModel(cfg ModelConfig) *OpenAIModel {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIModel{
		model:      model,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
		logger:     cfg.logger(),
		debugMode:  cfg.DebugMode,
	}
}

// Name returns the provider name
func (p *OpenAIModel) Name() string {
	return "openai"
}

// messages converts a conversation to chat completion messages
func (p *OpenAIModel) messages(conv Conversation) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv.History)+2)
	out = append(out, openai.SystemMessage(conv.System))
	for _, turn := range conv.History {
		switch turn.Role {
		case models.RoleModel:
			out = append(out, openai.AssistantMessage(turn.Text))
		default:
			out = append(out, openai.UserMessage(turn.Text))
		}
	}
	return append(out, openai.UserMessage(conv.Message))
}

// Send performs one non-streaming chat completion
func (p *OpenAIModel) Send(ctx context.Context, apiKey string, conv Conversation) (string, error) {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	)

	requestID := request.RequestIDFromContext(ctx)
	msgs := p.messages(conv)

	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("message_count", len(msgs)),
			zap.Strings("message_previews", TurnPreviews(conv.Turns(), false)),
			zap.String("request_id", requestID),
		)
	}

	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
		// Temperature omitted - use model default to avoid "unsupported_value" errors
	}

	startTime := time.Now()
	resp, err := client.Chat.Completions.New(ctx, req)
	latency := time.Since(startTime)

	if err != nil {
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", p.Name()),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		return "", openAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Provider: p.Name(), Message: ErrNoChoicesInResponse, Err: errors.New(ErrNoChoicesInResponse)}
	}

	content := resp.Choices[0].Message.Content

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// openAIError keeps the API's own message when the SDK returns a structured error.
func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = err.Error()
		}
		return &UpstreamError{Provider: "openai", StatusCode: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &UpstreamError{Provider: "openai", Message: err.Error(), Err: err}
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(cfg ModelConfig) (ChatModel, error) {
		if cfg.Timeout < 0 {
			return nil, fmt.Errorf("openai timeout cannot be negative")
		}
		return NewOpenAIModel(cfg), nil
	})
}
