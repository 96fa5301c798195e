// Package openai implements the completion/embedding gateway against an
// OpenAI-compatible API.
package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"kbchat/internal/kberr"
)

// Client talks to the chat completions and embeddings endpoints of an
// OpenAI-compatible server.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	client         *http.Client
	maxRetries     int
}

// Config configures the client. APIKeyEnv names the environment variable
// holding the key.
type Config struct {
	BaseURL        string
	APIKeyEnv      string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// NewClient creates a gateway client. A missing API key is a
// configuration error.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, kberr.Config("models", "missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         key,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		client:         &http.Client{Timeout: t},
		maxRetries:     3,
	}, nil
}

// Complete sends the prompt as a single user message at temperature 0 and
// returns the model's literal reply.
func (c *Client) Complete(prompt string) (string, error) {
	body := map[string]any{
		"model":       c.model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	payload, err := c.postJSON(c.baseURL+"/chat/completions", body)
	if err != nil {
		return "", kberr.Gateway("complete", err)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", kberr.Gateway("complete", err)
	}
	if len(out.Choices) == 0 {
		return "", kberr.Gateway("complete", errors.New("no choices returned"))
	}
	return out.Choices[0].Message.Content, nil
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(text string) ([]float64, error) {
	body := map[string]any{
		"model": c.embeddingModel,
		"input": text,
	}
	payload, err := c.postJSON(c.baseURL+"/embeddings", body)
	if err != nil {
		return nil, kberr.Gateway("embed", err)
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, kberr.Gateway("embed", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, kberr.Gateway("embed", errors.New("no embedding returned"))
	}
	return out.Data[0].Embedding, nil
}

// postJSON issues the request, retrying 429 and 5xx with backoff and
// honoring Retry-After when provided.
func (c *Client) postJSON(url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return nil, fmt.Errorf("POST %s: %s", url, resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("POST %s: %s", url, resp.Status)
		}
		return payload, nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
