package ollama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/internal/kberr"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Model: "llama3"})
}

func TestComplete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model   string `json:"model"`
			Prompt  string `json:"prompt"`
			Stream  bool   `json:"stream"`
			Options struct {
				Temperature float64 `json:"temperature"`
			} `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body.Model)
		assert.False(t, body.Stream)
		assert.Zero(t, body.Options.Temperature)
		w.Write([]byte(`{"response":"question"}`))
	})
	c := newTestClient(t, mux)
	out, err := c.Complete("Classify this input.")
	require.NoError(t, err)
	assert.Equal(t, "question", out)
}

func TestEmbed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "The sky is blue.", body.Prompt)
		w.Write([]byte(`{"embedding":[0.5,0.5]}`))
	})
	c := newTestClient(t, mux)
	vec, err := c.Embed("The sky is blue.")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, vec)
}

func TestBackendErrorIsGatewayError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})
	c := newTestClient(t, mux)
	_, err := c.Complete("hi")
	var gwErr *kberr.GatewayError
	assert.ErrorAs(t, err, &gwErr)
}
