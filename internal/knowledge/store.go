// Package knowledge is the knowledge store: a vector-indexed collection
// of canonical statements, addressable by semantic similarity. It
// composes the language-model gateway (for embeddings) with a raw
// vector storage backend.
package knowledge

import (
	"log/slog"

	"github.com/google/uuid"

	"kbchat/internal/domain"
	"kbchat/internal/kberr"
)

// Store embeds text through the gateway and persists or searches it in
// the storage backend. The embedding dimension is fixed per collection;
// a vector of any other size never reaches the backend.
type Store struct {
	gateway   domain.Gateway
	storage   domain.Storage
	dimension int
	logger    *slog.Logger
}

// NewStore wires a knowledge store. dimension must match the configured
// collection's vector size.
func NewStore(gateway domain.Gateway, storage domain.Storage, dimension int, logger *slog.Logger) *Store {
	return &Store{gateway: gateway, storage: storage, dimension: dimension, logger: logger}
}

// Init ensures the backing collection exists with the configured
// dimension. Idempotent; a dimension disagreement aborts startup.
func (s *Store) Init() error {
	return s.storage.EnsureCollection(s.dimension)
}

// Insert embeds text and persists it under a fresh id. No dedup happens
// here; callers that need dedup-safety must check before inserting.
func (s *Store) Insert(text string) (domain.StoredDocument, error) {
	vec, err := s.embed(text)
	if err != nil {
		return domain.StoredDocument{}, err
	}
	doc := domain.StoredDocument{
		ID:     uuid.NewString(),
		Text:   text,
		Vector: vec,
	}
	if err := s.storage.Upsert(doc); err != nil {
		return domain.StoredDocument{}, err
	}
	s.logger.Debug("document stored", "id", doc.ID)
	return doc, nil
}

// Search embeds the query and returns up to topK stored documents with
// similarity >= minScore, best first. No match is an empty slice.
func (s *Store) Search(query string, topK int, minScore float64) ([]domain.SimilarityMatch, error) {
	vec, err := s.embed(query)
	if err != nil {
		return nil, err
	}
	return s.storage.Search(vec, topK, minScore)
}

// Count returns the current document count. Observability only; never
// used for control flow.
func (s *Store) Count() (int, error) {
	return s.storage.Count()
}

// embed calls the gateway and enforces the dimension invariant before
// any backend call, for all backends.
func (s *Store) embed(text string) ([]float64, error) {
	vec, err := s.gateway.Embed(text)
	if err != nil {
		return nil, err
	}
	if len(vec) != s.dimension {
		return nil, kberr.Config("vectorstore",
			"embedding model returned dimension %d, collection expects %d", len(vec), s.dimension)
	}
	return vec, nil
}
