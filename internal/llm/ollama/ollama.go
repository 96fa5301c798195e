// Package ollama implements the completion/embedding gateway against a
// local Ollama server. One configured model serves both operations.
package ollama

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kbchat/internal/kberr"
)

// Client talks to the Ollama generate and embeddings endpoints.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// Config configures the client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a gateway client for a local Ollama server.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: t},
	}
}

// Complete runs a non-streaming generation at temperature 0 and returns
// the model's literal reply.
func (c *Client) Complete(prompt string) (string, error) {
	body := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
		},
	}
	payload, err := c.postJSON(c.baseURL+"/api/generate", body)
	if err != nil {
		return "", kberr.Gateway("complete", err)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", kberr.Gateway("complete", err)
	}
	if out.Response == "" {
		return "", kberr.Gateway("complete", errors.New("empty response"))
	}
	return out.Response, nil
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(text string) ([]float64, error) {
	body := map[string]any{
		"model":  c.model,
		"prompt": text,
	}
	payload, err := c.postJSON(c.baseURL+"/api/embeddings", body)
	if err != nil {
		return nil, kberr.Gateway("embed", err)
	}
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, kberr.Gateway("embed", err)
	}
	if len(out.Embedding) == 0 {
		return nil, kberr.Gateway("embed", errors.New("no embedding returned"))
	}
	return out.Embedding, nil
}

func (c *Client) postJSON(url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("POST %s: %s", url, resp.Status)
	}
	return payload, nil
}
