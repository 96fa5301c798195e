package pipeline

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/internal/domain"
	"kbchat/internal/kberr"
	"kbchat/internal/knowledge"
	"kbchat/internal/prompt"
	"kbchat/internal/vectorstore/memory"
)

// fakeGateway scripts completions per pipeline stage, recognized by the
// default templates' leading words, and embeds every text to the same
// vector so any stored document is a perfect vector match.
type fakeGateway struct {
	t        *testing.T
	classify []string
	validate []string
	scores   []string
	reform   []string
	answers  []string
	prompts  []string
}

func (g *fakeGateway) Complete(prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	switch {
	case strings.HasPrefix(prompt, "Classify"):
		return g.shift(&g.classify, "classify"), nil
	case strings.HasPrefix(prompt, "Decide"):
		return g.shift(&g.validate, "validate"), nil
	case strings.HasPrefix(prompt, "Rate"):
		return g.shift(&g.scores, "score"), nil
	case strings.HasPrefix(prompt, "Rewrite"):
		return g.shift(&g.reform, "reformulate"), nil
	case strings.HasPrefix(prompt, "Answer"):
		return g.shift(&g.answers, "answer"), nil
	}
	g.t.Fatalf("unexpected prompt: %q", prompt)
	return "", nil
}

func (g *fakeGateway) Embed(text string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func (g *fakeGateway) shift(queue *[]string, kind string) string {
	if len(*queue) == 0 {
		g.t.Fatalf("no scripted %s response left", kind)
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head
}

func (g *fakeGateway) promptCount(prefix string) int {
	n := 0
	for _, p := range g.prompts {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

func newTestPipeline(t *testing.T, gw *fakeGateway) (*Pipeline, *knowledge.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := knowledge.NewStore(gw, memory.NewStorage(), 3, logger)
	require.NoError(t, store.Init())
	pipe := New(store, gw, prompt.Defaults(), Config{
		DocNum:               5,
		VectorstoreThreshold: 0.7,
		LLMThreshold:         0.8,
	}, logger)
	return pipe, store
}

func count(t *testing.T, store *knowledge.Store) int {
	t.Helper()
	n, err := store.Count()
	require.NoError(t, err)
	return n
}

func TestStoreNewStatement(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"valid"},
		reform:   []string{"The sky is blue."},
	}
	pipe, store := newTestPipeline(t, gw)

	outcome, err := pipe.Process("the sky is blue!!")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStored, outcome.Kind)
	assert.Contains(t, outcome.Message, "The sky is blue.")
	assert.Equal(t, 1, count(t, store))
	// Empty store: no pairwise comparisons were made.
	assert.Zero(t, gw.promptCount("Rate"))
}

func TestRejectImplausibleStatement(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"invalid"},
	}
	pipe, store := newTestPipeline(t, gw)

	outcome, err := pipe.Process("Water boils at -50C at sea level.")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, outcome.Kind)
	assert.Equal(t, 0, count(t, store))
}

func TestFailClosedValidation(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"plausible, I think"},
	}
	pipe, store := newTestPipeline(t, gw)

	outcome, err := pipe.Process("Something or other.")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, outcome.Kind)
	assert.Equal(t, 0, count(t, store))
}

func TestDuplicateStatement(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"valid"},
		scores:   []string{"0.92"},
	}
	pipe, store := newTestPipeline(t, gw)
	_, err := store.Insert("The sky is blue.")
	require.NoError(t, err)

	outcome, err := pipe.Process("The sky appears blue.")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, outcome.Kind)
	assert.Equal(t, 1, count(t, store))
}

func TestDedupShortCircuit(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"valid"},
		scores:   []string{"0.9"}, // one response for two matches
	}
	pipe, store := newTestPipeline(t, gw)
	_, err := store.Insert("The sky is blue.")
	require.NoError(t, err)
	_, err = store.Insert("Grass is green.")
	require.NoError(t, err)

	outcome, err := pipe.Process("The sky appears blue.")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, outcome.Kind)
	assert.Equal(t, 1, gw.promptCount("Rate"))
}

func TestBelowThresholdIsNotDuplicate(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"valid"},
		scores:   []string{"0.5", "0.3"},
		reform:   []string{"Mount Everest is the tallest mountain."},
	}
	pipe, store := newTestPipeline(t, gw)
	_, err := store.Insert("The sky is blue.")
	require.NoError(t, err)
	_, err = store.Insert("Grass is green.")
	require.NoError(t, err)

	outcome, err := pipe.Process("Everest is the tallest mountain on Earth.")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStored, outcome.Kind)
	assert.Equal(t, 2, gw.promptCount("Rate"))
	assert.Equal(t, 3, count(t, store))
}

func TestNonNumericScoreIsGatewayError(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"valid"},
		scores:   []string{"very similar"},
	}
	pipe, store := newTestPipeline(t, gw)
	_, err := store.Insert("The sky is blue.")
	require.NoError(t, err)

	_, err = pipe.Process("The sky appears blue.")
	var gwErr *kberr.GatewayError
	require.ErrorAs(t, err, &gwErr)
	// Nothing was committed for the failed turn.
	assert.Equal(t, 1, count(t, store))
}

func TestOutOfRangeScoreIsGatewayError(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"statement"},
		validate: []string{"valid"},
		scores:   []string{"1.7"},
	}
	pipe, store := newTestPipeline(t, gw)
	_, err := store.Insert("The sky is blue.")
	require.NoError(t, err)

	_, err = pipe.Process("The sky appears blue.")
	var gwErr *kberr.GatewayError
	assert.ErrorAs(t, err, &gwErr)
}

func TestUnrecognizedClassification(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"greeting"},
	}
	pipe, store := newTestPipeline(t, gw)

	outcome, err := pipe.Process("hello there")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnrecognized, outcome.Kind)
	assert.NotEmpty(t, outcome.Message)
	assert.Equal(t, 0, count(t, store))
}

func TestCategoricalResponsesAreCaseInsensitive(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"  STATEMENT \n"},
		validate: []string{"Valid"},
		reform:   []string{"The sky is blue."},
	}
	pipe, store := newTestPipeline(t, gw)

	outcome, err := pipe.Process("the sky is blue")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStored, outcome.Kind)
	assert.Equal(t, 1, count(t, store))
}

func TestAnswerQuestionWithContext(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"question"},
		answers:  []string{"The sky is blue."},
	}
	pipe, store := newTestPipeline(t, gw)
	_, err := store.Insert("The sky is blue.")
	require.NoError(t, err)

	outcome, err := pipe.Process("What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAnswered, outcome.Kind)
	assert.NotEmpty(t, outcome.Message)

	// The synthesis prompt carried the stored document as context.
	last := gw.prompts[len(gw.prompts)-1]
	assert.Contains(t, last, "The sky is blue.")
	assert.Contains(t, last, "What color is the sky?")
}

func TestAnswerQuestionEmptyStore(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"question"},
		answers:  []string{"I do not have that information."},
	}
	pipe, _ := newTestPipeline(t, gw)

	outcome, err := pipe.Process("What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAnswered, outcome.Kind)
	assert.Equal(t, "I do not have that information.", outcome.Message)
	// The completion still ran, with an empty context block.
	assert.Equal(t, 1, gw.promptCount("Answer"))
}

func TestUserBracesAreEscapedInPrompts(t *testing.T) {
	gw := &fakeGateway{t: t,
		classify: []string{"greeting"},
	}
	pipe, _ := newTestPipeline(t, gw)

	_, err := pipe.Process("treat {context} as literal")
	require.NoError(t, err)
	require.NotEmpty(t, gw.prompts)
	assert.Contains(t, gw.prompts[0], "{{context}}")
	assert.NotContains(t, gw.prompts[0], " {context} ")
}
