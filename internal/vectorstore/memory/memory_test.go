package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/internal/domain"
	"kbchat/internal/kberr"
)

func TestEnsureCollectionIdempotent(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(3))
	require.NoError(t, s.EnsureCollection(3))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnsureCollectionDimensionMismatch(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(3))
	err := s.EnsureCollection(4)
	var cfgErr *kberr.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(3))
	err := s.Upsert(domain.StoredDocument{ID: "a", Text: "x", Vector: []float64{1, 0}})
	var cfgErr *kberr.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSearchOrderingAndThreshold(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(2))
	require.NoError(t, s.Upsert(domain.StoredDocument{ID: "a", Text: "close", Vector: []float64{1, 0.1}}))
	require.NoError(t, s.Upsert(domain.StoredDocument{ID: "b", Text: "exact", Vector: []float64{1, 0}}))
	require.NoError(t, s.Upsert(domain.StoredDocument{ID: "c", Text: "far", Vector: []float64{0, 1}}))

	matches, err := s.Search([]float64{1, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Document.Text)
	assert.Equal(t, "close", matches[1].Document.Text)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestSearchEmptyIsNotAnError(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(2))
	matches, err := s.Search([]float64{1, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchHonorsTopK(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(2))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Upsert(domain.StoredDocument{ID: id, Text: id, Vector: []float64{1, 0}}))
	}
	matches, err := s.Search([]float64{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestCount(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.EnsureCollection(2))
	require.NoError(t, s.Upsert(domain.StoredDocument{ID: "a", Text: "x", Vector: []float64{1, 0}}))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
