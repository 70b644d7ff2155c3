package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewClient creates a Client for the configured provider. An empty
// provider defaults to "openai", which also covers any OpenAI-compatible
// endpoint (vLLM, Ollama, LM Studio).
func NewClient(cfg *Config, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
