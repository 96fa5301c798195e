// Package pipeline implements the ingestion-and-dedup decision flow:
// one raw user input per call is classified as a statement or a
// question; statements are validated, checked against the knowledge
// base for semantic duplicates, canonically reformulated and stored;
// questions are answered from retrieved statements.
package pipeline

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"kbchat/internal/domain"
	"kbchat/internal/kberr"
	"kbchat/internal/knowledge"
	"kbchat/internal/prompt"
)

// Messages shown to the user for each terminal outcome.
const (
	msgStoredFmt    = "Statement added to the knowledge base! Here is the reformulated statement: %s"
	msgDuplicate    = "This information already exists in the database."
	msgRejected     = "This statement seems invalid or implausible."
	msgUnrecognized = "Sorry, I couldn't tell whether that was a statement or a question. Please rephrase it."
)

// Config carries the search parameters of one pipeline instance.
type Config struct {
	// DocNum is the top_k for both the dedup search and the QA search.
	DocNum int
	// VectorstoreThreshold is the minimum vector similarity for a stored
	// document to count as a search match.
	VectorstoreThreshold float64
	// LLMThreshold is the minimum adjudicated similarity score for two
	// statements to count as duplicates.
	LLMThreshold float64
}

// Pipeline processes one raw input per call, strictly sequentially. The
// dedup-check-then-insert window is serialized per instance, so two
// near-duplicate statements ingested through the same process cannot
// both pass the check and both insert. Concurrent processes sharing one
// collection can still race; the collection offers no compare-and-insert.
type Pipeline struct {
	store   *knowledge.Store
	gateway domain.Gateway
	prompts *prompt.Set
	cfg     Config
	logger  *slog.Logger

	mu sync.Mutex
}

// New wires a pipeline. All dependencies are explicit; the pipeline
// holds no global state.
func New(store *knowledge.Store, gateway domain.Gateway, prompts *prompt.Set, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: store, gateway: gateway, prompts: prompts, cfg: cfg, logger: logger}
}

// Process runs one full turn: classify, then either the statement branch
// (validate, dedup, reformulate, store) or the question branch (retrieve,
// synthesize). Every terminal state maps to exactly one outcome; on error
// nothing has been stored.
func (p *Pipeline) Process(raw string) (domain.Outcome, error) {
	class, err := p.Classify(raw)
	if err != nil {
		return domain.Outcome{}, err
	}
	p.logger.Info("input classified", "classification", string(class))
	switch class {
	case domain.ClassStatement:
		return p.ingestStatement(raw)
	case domain.ClassQuestion:
		answer, err := p.answerQuestion(raw)
		if err != nil {
			return domain.Outcome{}, err
		}
		return domain.Outcome{Kind: domain.OutcomeAnswered, Message: answer}, nil
	default:
		return domain.Outcome{Kind: domain.OutcomeUnrecognized, Message: msgUnrecognized}, nil
	}
}

// Classify decides whether raw is a statement or a question. Any reply
// outside the two expected literals is Unrecognized: the pipeline
// reports back instead of guessing.
func (p *Pipeline) Classify(raw string) (domain.Classification, error) {
	resp, err := p.completeCategorical(p.prompts.ClassifyInput, map[string]string{
		"user_input": raw,
	})
	if err != nil {
		return "", err
	}
	switch resp {
	case "statement":
		return domain.ClassStatement, nil
	case "question":
		return domain.ClassQuestion, nil
	default:
		p.logger.Warn("unexpected classification response", "response", resp)
		return domain.ClassUnrecognized, nil
	}
}

func (p *Pipeline) ingestStatement(statement string) (domain.Outcome, error) {
	valid, err := p.validateStatement(statement)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !valid {
		return domain.Outcome{Kind: domain.OutcomeRejected, Message: msgRejected}, nil
	}

	// Serialize the dedup-check-then-insert window so two concurrent
	// turns in this process cannot both miss each other's insert.
	p.mu.Lock()
	defer p.mu.Unlock()

	dup, err := p.checkDuplicate(statement)
	if err != nil {
		return domain.Outcome{}, err
	}
	if dup {
		return domain.Outcome{Kind: domain.OutcomeDuplicate, Message: msgDuplicate}, nil
	}
	canonical, err := p.reformulate(statement)
	if err != nil {
		return domain.Outcome{}, err
	}
	if _, err := p.store.Insert(canonical); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{
		Kind:    domain.OutcomeStored,
		Message: fmt.Sprintf(msgStoredFmt, canonical),
	}, nil
}

// validateStatement asks the model for a plausibility check. Accepted
// replies are exactly "valid" and "invalid"; anything else fails closed
// to invalid and is logged as an anomaly.
func (p *Pipeline) validateStatement(statement string) (bool, error) {
	resp, err := p.completeCategorical(p.prompts.ValidateStatement, map[string]string{
		"statement": statement,
	})
	if err != nil {
		return false, err
	}
	if resp != "valid" && resp != "invalid" {
		p.logger.Warn("unexpected validation response, treating as invalid", "response", resp)
		return false, nil
	}
	return resp == "valid", nil
}

// checkDuplicate searches the knowledge base and asks the model to score
// each match against the candidate, best match first. The first score at
// or above the threshold short-circuits the remaining comparisons.
func (p *Pipeline) checkDuplicate(statement string) (bool, error) {
	matches, err := p.store.Search(statement, p.cfg.DocNum, p.cfg.VectorstoreThreshold)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		score, err := p.adjudicate(statement, m.Document.Text)
		if err != nil {
			return false, err
		}
		p.logger.Info("duplicate adjudication", "score", score, "match", m.Document.Text)
		if score >= p.cfg.LLMThreshold {
			return true, nil
		}
	}
	return false, nil
}

// adjudicate asks the model for a similarity score in [0,1] between the
// candidate and one stored text. A non-numeric or out-of-range reply is
// a gateway format violation, not a soft decision.
func (p *Pipeline) adjudicate(statement, stored string) (float64, error) {
	resp, err := p.completeCategorical(p.prompts.CheckDuplicate, map[string]string{
		"statement":    statement,
		"page_content": stored,
	})
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, kberr.Gateway("complete", fmt.Errorf("non-numeric duplicate score %q", resp))
	}
	if score < 0 || score > 1 {
		return 0, kberr.Gateway("complete", fmt.Errorf("duplicate score %v outside [0,1]", score))
	}
	return score, nil
}

// reformulate turns the validated statement into its canonical stored
// form. The reformulation is trusted verbatim.
func (p *Pipeline) reformulate(statement string) (string, error) {
	resp, err := p.complete(p.prompts.ReformulateForDB, map[string]string{
		"statement": statement,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// answerQuestion retrieves matching statements, assembles them as
// context in returned order, and synthesizes an answer. An empty store
// still produces a completion call with an empty context block.
func (p *Pipeline) answerQuestion(question string) (string, error) {
	matches, err := p.store.Search(question, p.cfg.DocNum, p.cfg.VectorstoreThreshold)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Document.Text
	}
	context := strings.Join(texts, "\n")
	p.logger.Info("question context assembled", "documents", len(matches))
	resp, err := p.complete(p.prompts.HandleQuestion, map[string]string{
		"context":  context,
		"question": question,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// complete renders the template and calls the gateway, trimming the
// reply. Case is preserved; answers and reformulations are not
// categorical.
func (p *Pipeline) complete(template string, vars map[string]string) (string, error) {
	rendered, err := prompt.Render(template, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	resp, err := p.gateway.Complete(rendered)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// completeCategorical additionally lowercases the reply; short
// categorical responses are matched case-insensitively.
func (p *Pipeline) completeCategorical(template string, vars map[string]string) (string, error) {
	resp, err := p.complete(template, vars)
	if err != nil {
		return "", err
	}
	return strings.ToLower(resp), nil
}
