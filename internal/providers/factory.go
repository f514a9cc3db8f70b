package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider kinds accepted by New.
const (
	KindGemini    = "gemini"
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindDashScope = "dashscope"
)

// Config describes one configured gateway.
type Config struct {
	Kind         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RPS          float64
	Burst        int
	Retry        RetryConfig
}

// New builds the provider named by cfg.Kind and applies the rate-limit and
// retry decorators. The retry layer sits outside the limiter so every
// attempt waits for a token.
func New(ctx context.Context, cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %q: api key is required", cfg.Kind)
	}
	var httpClient *http.Client
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Kind) {
	case "", KindGemini:
		p, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL, cfg.DefaultModel, httpClient)
	case KindOpenAI:
		p = NewOpenAIProvider(KindOpenAI, cfg.APIKey, cfg.BaseURL, cfg.DefaultModel, httpClient)
	case KindAnthropic:
		p = NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.DefaultModel, httpClient)
	case KindDashScope:
		p = NewDashScopeProvider(cfg.APIKey, cfg.BaseURL, cfg.DefaultModel, httpClient)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	p = WithRateLimit(p, cfg.RPS, cfg.Burst)
	p = WithRetry(p, cfg.Retry)
	return p, nil
}
