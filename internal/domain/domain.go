package domain

// Classification is the decided type of one raw user input.
type Classification string

const (
	ClassStatement    Classification = "statement"
	ClassQuestion     Classification = "question"
	ClassUnrecognized Classification = "unrecognized"
)

// StoredDocument is one canonical statement persisted in the knowledge
// base together with its embedding vector.
type StoredDocument struct {
	ID     string
	Text   string
	Vector []float64
}

// SimilarityMatch is a stored document returned by a similarity search
// with its score. Matches are ordered by descending score.
type SimilarityMatch struct {
	Document StoredDocument
	Score    float64
}

// OutcomeKind names the terminal state of one pipeline turn.
type OutcomeKind string

const (
	OutcomeStored       OutcomeKind = "stored"
	OutcomeDuplicate    OutcomeKind = "duplicate"
	OutcomeRejected     OutcomeKind = "rejected"
	OutcomeAnswered     OutcomeKind = "answered"
	OutcomeUnrecognized OutcomeKind = "unrecognized"
)

// Outcome is what the presentation layer receives for one user turn.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// Gateway is the seam over an external language model: text completion
// and text embedding. Implementations return the model's literal output;
// trimming and case normalization belong to the caller, which knows
// whether a response is categorical.
type Gateway interface {
	Complete(prompt string) (string, error)
	Embed(text string) ([]float64, error)
}

// Storage persists raw vectors and supports threshold-filtered
// similarity search. Implementations do not embed; that is the
// knowledge store's job.
type Storage interface {
	// EnsureCollection creates the backing collection if absent. It is
	// idempotent; a dimension disagreement with an existing collection
	// is a configuration error.
	EnsureCollection(dimension int) error
	Upsert(doc StoredDocument) error
	// Search returns up to topK matches with score >= minScore, best
	// first. No match is an empty slice, not an error.
	Search(vector []float64, topK int, minScore float64) ([]SimilarityMatch, error)
	Count() (int, error)
}
