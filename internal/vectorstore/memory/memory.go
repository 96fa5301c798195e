// Package memory is an in-process vector storage backend using cosine
// similarity. It backs tests and local runs without a Qdrant server.
package memory

import (
	"math"
	"sort"
	"sync"

	"kbchat/internal/domain"
	"kbchat/internal/kberr"
)

// Storage implements domain.Storage in memory.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	docs      []domain.StoredDocument
}

func NewStorage() *Storage {
	return &Storage{}
}

// EnsureCollection is idempotent; calling it again with a different
// dimension is a configuration error.
func (s *Storage) EnsureCollection(dimension int) error {
	if dimension <= 0 {
		return kberr.Config("vectorstore", "invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return kberr.Config("vectorstore",
			"collection has dimension %d, configured vector_size is %d", s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(doc domain.StoredDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return kberr.Config("vectorstore", "collection not initialized")
	}
	if len(doc.Vector) != s.dimension {
		return kberr.Config("vectorstore",
			"vector has dimension %d, collection expects %d", len(doc.Vector), s.dimension)
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *Storage) Search(vector []float64, topK int, minScore float64) ([]domain.SimilarityMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	matches := make([]domain.SimilarityMatch, 0, len(s.docs))
	for _, d := range s.docs {
		score := cosine(vector, d.Vector)
		if score >= minScore {
			matches = append(matches, domain.SimilarityMatch{Document: d, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Storage) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
