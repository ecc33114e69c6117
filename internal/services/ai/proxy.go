package ai

import (
	"context"
	"errors"
	"time"

	"github.com/benvon/portfolio-chat/internal/logger"
	"github.com/benvon/portfolio-chat/internal/metrics"
	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/request"
	"github.com/benvon/portfolio-chat/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultOwner names the portfolio owner when none is configured.
const DefaultOwner = "the portfolio owner"

// ConfigStore supplies the settings read at the start of every chat call.
type ConfigStore interface {
	GetAppConfig(ctx context.Context) (*models.AppConfig, error)
}

// ChatResponse is the successful chat outcome
type ChatResponse struct {
	Response string `json:"response"`
}

// ProxyOptions configures a ChatProxy.
type ProxyOptions struct {
	Owner     string
	Timeout   time.Duration
	Logger    *zap.Logger
	DebugMode bool
}

// ChatProxy validates a chat request, assembles the conversation and makes one upstream call.
// It keeps no state between calls.
type ChatProxy struct {
	config    ConfigStore
	model     ChatModel
	owner     string
	timeout   time.Duration
	logger    *zap.Logger
	debugMode bool
}

// NewChatProxy creates a chat proxy
func NewChatProxy(config ConfigStore, model ChatModel, opts ProxyOptions) *ChatProxy {
	if opts.Owner == "" {
		opts.Owner = DefaultOwner
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ChatProxy{
		config:    config,
		model:     model,
		owner:     opts.Owner,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		debugMode: opts.DebugMode,
	}
}

// Handle runs one chat request. Failures are returned as *Error.
func (p *ChatProxy) Handle(ctx context.Context, req *models.ChatRequest) (*ChatResponse, error) {
	ctx, span := otel.Tracer("portfolio-chat/ai").Start(ctx, "chat.handle")
	defer span.End()

	resp, err := p.handle(ctx, req)
	outcome := "ok"
	if err != nil {
		code := CodeInternal
		if e := AsError(err); e != nil {
			code = e.Code
		}
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("chat.outcome", outcome))
	metrics.ObserveChatOutcome(outcome)
	return resp, err
}

func (p *ChatProxy) handle(ctx context.Context, req *models.ChatRequest) (*ChatResponse, error) {
	requestID := request.RequestIDFromContext(ctx)

	if req == nil || validation.Validate.Struct(req) != nil {
		return nil, NewError(CodeInvalidArgument, MsgMessageRequired)
	}

	cfg, err := p.config.GetAppConfig(ctx)
	if err != nil {
		p.logger.Error("chat_config_unavailable",
			zap.String("request_id", requestID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return nil, &Error{Code: CodeFailedPrecondition, Message: MsgNotConfigured, Err: err}
	}
	if !cfg.HasAPIKey() {
		p.logger.Error("chat_api_key_missing", zap.String("request_id", requestID))
		return nil, NewError(CodeFailedPrecondition, MsgNotConfigured)
	}

	history := FilterHistory(req.History)
	conv := BuildConversation(
		BuildSystemPrompt(p.owner, cfg.ResumeContext, req.Context),
		Acknowledgement(p.owner),
		history,
		req.Message,
	)

	if p.debugMode {
		p.logger.Debug("chat_conversation_assembled",
			zap.String("request_id", requestID),
			zap.Int("history_received", len(req.History)),
			zap.Int("history_kept", len(history)),
			zap.String("message_preview", SanitizePrompt(req.Message, false)),
			zap.String("api_key", SanitizeAPIKey(cfg.APIKey)),
		)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	reply, err := p.model.Send(callCtx, cfg.APIKey, conv)
	latency := time.Since(start)
	metrics.ObserveUpstream(p.model.Name(), latency, err)

	if err != nil {
		if e := AsError(err); e != nil {
			return nil, e
		}
		level := zap.ErrorLevel
		if IsRateLimitError(err) || errors.Is(err, context.DeadlineExceeded) {
			level = zap.WarnLevel
		}
		p.logger.Log(level, "chat_upstream_failed",
			zap.String("request_id", requestID),
			zap.String("provider", p.model.Name()),
			zap.String("error", logger.SanitizeError(err)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return nil, &Error{Code: CodeInternal, Message: upstreamMessage(err), Err: err}
	}

	p.logger.Info("chat_upstream_succeeded",
		zap.String("request_id", requestID),
		zap.String("provider", p.model.Name()),
		zap.Int("history_kept", len(history)),
		zap.Int("response_length", len(reply)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)

	return &ChatResponse{Response: reply}, nil
}
