package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kbchat/internal/kberr"
)

// VectorstoreConfig selects and configures the vector store backend.
type VectorstoreConfig struct {
	Type           string `yaml:"type"`
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	CollectionName string `yaml:"collection_name"`
	VectorSize     int    `yaml:"vector_size"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// SearchConfig holds the retrieval and dedup thresholds.
type SearchConfig struct {
	DocNum               int     `yaml:"doc_num"`
	VectorstoreThreshold float64 `yaml:"vectorstore_threshold"`
	LLMThreshold         float64 `yaml:"llm_threshold"`
}

// OpenAIConfig configures the OpenAI-compatible gateway.
type OpenAIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// OllamaConfig configures the Ollama gateway. Ollama serves both
// completions and embeddings from the same model.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ModelsConfig selects the language model provider.
type ModelsConfig struct {
	Provider string        `yaml:"provider"`
	OpenAI   *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama   *OllamaConfig `yaml:"ollama,omitempty"`
}

// AppConfig is the root application configuration. It is loaded once at
// process start, validated, and immutable thereafter.
type AppConfig struct {
	Vectorstore VectorstoreConfig `yaml:"vectorstore"`
	Search      SearchConfig      `yaml:"search"`
	Models      ModelsConfig      `yaml:"models"`
	PromptsPath string            `yaml:"prompts_path"`
}

// Load reads and validates a config from path. A missing file yields
// validated defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, cfg.validate()
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, kberr.Config("file", "parse %s: %v", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/kbchat/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, cfg.validate()
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kbchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Vectorstore: VectorstoreConfig{
			Type:           "qdrant",
			URL:            "http://localhost:6333",
			CollectionName: "knowledge_base",
			VectorSize:     1536,
			TimeoutSecs:    15,
		},
		Search: SearchConfig{
			DocNum:               5,
			VectorstoreThreshold: 0.7,
			LLMThreshold:         0.8,
		},
		Models: ModelsConfig{
			Provider: "openai",
			OpenAI: &OpenAIConfig{
				BaseURL:        "https://api.openai.com/v1",
				APIKeyEnv:      "OPENAI_API_KEY",
				Model:          "gpt-4o-mini",
				EmbeddingModel: "text-embedding-3-small",
				TimeoutSecs:    60,
			},
		},
		PromptsPath: "prompts.yaml",
	}
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Vectorstore.Type == "" {
		cfg.Vectorstore.Type = "qdrant"
	}
	if cfg.Vectorstore.CollectionName == "" {
		cfg.Vectorstore.CollectionName = "knowledge_base"
	}
	if cfg.Vectorstore.VectorSize == 0 {
		cfg.Vectorstore.VectorSize = 1536
	}
	if cfg.Vectorstore.TimeoutSecs == 0 {
		cfg.Vectorstore.TimeoutSecs = 15
	}
	if cfg.Search.DocNum == 0 {
		cfg.Search.DocNum = 5
	}
	if cfg.Search.VectorstoreThreshold == 0 {
		cfg.Search.VectorstoreThreshold = 0.7
	}
	if cfg.Search.LLMThreshold == 0 {
		cfg.Search.LLMThreshold = 0.8
	}
	if cfg.PromptsPath == "" {
		cfg.PromptsPath = "prompts.yaml"
	}
	if cfg.Models.Provider == "openai" && cfg.Models.OpenAI != nil {
		o := cfg.Models.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.EmbeddingModel == "" {
			o.EmbeddingModel = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	}
	if cfg.Models.Provider == "ollama" && cfg.Models.Ollama != nil {
		ol := cfg.Models.Ollama
		if ol.BaseURL == "" {
			ol.BaseURL = "http://localhost:11434"
		}
		if ol.TimeoutSecs == 0 {
			ol.TimeoutSecs = 120
		}
	}
}

// validate fails fast on any missing or inconsistent section so that no
// pipeline call ever runs against a half-formed configuration.
func (c *AppConfig) validate() error {
	switch c.Vectorstore.Type {
	case "qdrant":
		if c.Vectorstore.URL == "" {
			return kberr.Config("vectorstore", "qdrant requires url")
		}
	case "memory":
	default:
		return kberr.Config("vectorstore", "unknown type %q", c.Vectorstore.Type)
	}
	if c.Vectorstore.CollectionName == "" {
		return kberr.Config("vectorstore", "collection_name must not be empty")
	}
	if c.Vectorstore.VectorSize <= 0 {
		return kberr.Config("vectorstore", "vector_size must be positive, got %d", c.Vectorstore.VectorSize)
	}
	if c.Search.DocNum <= 0 {
		return kberr.Config("search", "doc_num must be positive, got %d", c.Search.DocNum)
	}
	if c.Search.VectorstoreThreshold < 0 || c.Search.VectorstoreThreshold > 1 {
		return kberr.Config("search", "vectorstore_threshold must be in [0,1], got %v", c.Search.VectorstoreThreshold)
	}
	if c.Search.LLMThreshold < 0 || c.Search.LLMThreshold > 1 {
		return kberr.Config("search", "llm_threshold must be in [0,1], got %v", c.Search.LLMThreshold)
	}
	switch c.Models.Provider {
	case "openai":
		if c.Models.OpenAI == nil {
			return kberr.Config("models", "openai section missing")
		}
		if c.Models.OpenAI.Model == "" {
			return kberr.Config("models", "openai model must not be empty")
		}
	case "ollama":
		if c.Models.Ollama == nil {
			return kberr.Config("models", "ollama section missing")
		}
		if c.Models.Ollama.Model == "" {
			return kberr.Config("models", "ollama model must not be empty")
		}
	default:
		return kberr.Config("models", "unsupported provider %q", c.Models.Provider)
	}
	if c.PromptsPath == "" {
		return kberr.Config("prompts", "prompts_path must not be empty")
	}
	return nil
}
