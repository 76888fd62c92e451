package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"adaptive-quiz-backend/internal/config"
)

// NewProvider builds the backend named by LLM.PROVIDER with logging and
// retries around it. An empty or "none" provider returns nil: callers then use the
// local generator only.
func NewProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, failures FailureCounter) (Provider, error) {
	var base Provider
	var err error

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "deepseek":
		base, err = NewChatCompletions(OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        orDefault(cfg.BaseURL, DeepSeekBaseURL),
			Model:          orDefault(cfg.Model, DeepSeekModel),
			JSONObjectMode: true,
		})
	case "openai":
		base, err = NewChatCompletions(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   orDefault(cfg.Model, "gpt-4o-mini"),
		})
	case "anthropic":
		base, err = NewClaude(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   orDefault(cfg.Model, "claude-haiku"),
		})
	case "gemini":
		base, err = NewGemini(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  orDefault(cfg.Model, "gemini-flash"),
		})
	case "ollama":
		base = NewOllamaProvider(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		})
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// every attempt is logged and counted, so retrying wraps observed
	observedBase := Observed(base, logger, failures)
	if cfg.RetryAttempts <= 1 {
		return observedBase, nil
	}
	backoff := DefaultBackoff()
	backoff.Attempts = cfg.RetryAttempts
	return Retrying(observedBase, backoff), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
