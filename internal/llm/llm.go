// Package llm selects the configured completion/embedding gateway.
package llm

import (
	"time"

	"kbchat/internal/config"
	"kbchat/internal/domain"
	"kbchat/internal/kberr"
	"kbchat/internal/llm/ollama"
	"kbchat/internal/llm/openai"
)

// New builds the gateway for the configured provider.
func New(cfg config.ModelsConfig) (domain.Gateway, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI == nil {
			return nil, kberr.Config("models", "openai section missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:        cfg.OpenAI.BaseURL,
			APIKeyEnv:      cfg.OpenAI.APIKeyEnv,
			Model:          cfg.OpenAI.Model,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			Timeout:        time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
	case "ollama":
		if cfg.Ollama == nil {
			return nil, kberr.Config("models", "ollama section missing")
		}
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, kberr.Config("models", "unsupported provider %q", cfg.Provider)
	}
}
