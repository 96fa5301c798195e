// Package qdrant is a minimal REST client to Qdrant using cosine
// distance. The collection is created on first use; a dimension
// disagreement with an existing collection is refused.
package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kbchat/internal/domain"
	"kbchat/internal/kberr"
)

// Storage implements domain.Storage over the Qdrant HTTP API.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if absent. When the collection
// already exists its configured vector size is compared against the
// requested dimension; a mismatch is a configuration error, never silent
// corruption.
func (s *Storage) EnsureCollection(dimension int) error {
	if dimension <= 0 {
		return kberr.Config("vectorstore", "invalid dimension %d", dimension)
	}
	existing, found, err := s.collectionDimension()
	if err != nil {
		return err
	}
	if found {
		if existing != dimension {
			return kberr.Config("vectorstore",
				"collection %q has dimension %d, configured vector_size is %d",
				s.collection, existing, dimension)
		}
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return err
	}
	return nil
}

// collectionDimension fetches the existing collection's vector size.
// found is false when the collection does not exist.
func (s *Storage) collectionDimension() (dimension int, found bool, err error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return 0, false, kberr.Store("get collection", err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, kberr.Store("get collection", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode >= 300 {
		return 0, false, kberr.Store("get collection", fmt.Errorf("unexpected status %s", resp.Status))
	}
	var out struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, false, kberr.Store("get collection", err)
	}
	if out.Result.Config.Params.Vectors.Size == 0 {
		return 0, false, kberr.Store("get collection", errors.New("missing vector size in response"))
	}
	return out.Result.Config.Params.Vectors.Size, true, nil
}

// Upsert persists one document. No dedup happens here; that is the
// caller's responsibility.
func (s *Storage) Upsert(doc domain.StoredDocument) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     doc.ID,
				"vector": doc.Vector,
				"payload": map[string]any{
					"text": doc.Text,
				},
			},
		},
	}
	return s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

// Search returns up to topK matches with score >= minScore, best first.
// Nothing clearing the threshold is an empty slice.
func (s *Storage) Search(vector []float64, topK int, minScore float64) ([]domain.SimilarityMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"score_threshold": minScore,
		"with_payload":    true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.SimilarityMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := domain.StoredDocument{ID: fmt.Sprint(r.ID)}
		if v, ok := r.Payload["text"].(string); ok {
			doc.Text = v
		}
		matches = append(matches, domain.SimilarityMatch{Document: doc, Score: r.Score})
	}
	return matches, nil
}

// Count returns the exact point count of the collection.
func (s *Storage) Count() (int, error) {
	req := map[string]any{"exact": true}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Storage) putJSON(url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return kberr.Store("put", err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return kberr.Store("put", err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return kberr.Store("put", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return kberr.Store("put", fmt.Errorf("%s: %s", url, resp.Status))
	}
	return nil
}

func (s *Storage) postJSON(url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return kberr.Store("post", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return kberr.Store("post", err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return kberr.Store("post", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return kberr.Store("post", fmt.Errorf("%s: %s", url, resp.Status))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return kberr.Store("post", err)
		}
	}
	return nil
}
