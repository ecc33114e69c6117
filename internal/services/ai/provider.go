package ai

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is the default timeout for upstream calls
const DefaultTimeout = 60 * time.Second

// ChatModel sends one assembled conversation upstream and returns the reply text.
// The API key is passed per call because it is read fresh from settings on every request.
type ChatModel interface {
	Name() string
	Send(ctx context.Context, apiKey string, conv Conversation) (string, error)
}

// ModelConfig configures a ChatModel built by the registry.
type ModelConfig struct {
	Model     string
	BaseURL   string
	Timeout   time.Duration
	Logger    *zap.Logger
	DebugMode bool
}

func (c ModelConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c ModelConfig) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// ProviderFactory creates a chat model from its configuration
type ProviderFactory func(cfg ModelConfig) (ChatModel, error)

// ProviderRegistry stores available upstream providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// NewDefaultRegistry returns a registry with every built-in provider registered.
func NewDefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterGemini(r)
	RegisterOpenAI(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider builds the named provider
func (r *ProviderRegistry) GetProvider(name string, cfg ModelConfig) (ChatModel, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(cfg)
}

// Names lists registered providers in sorted order.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
