package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbase/cvsearch/internal/vector"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return make([]float32, vector.Dimension), nil
}

// stubIndex returns canned hits; emptyUntilCall makes the first N searches
// return nothing to exercise the direct-query fallback.
type stubIndex struct {
	hits           []*vector.ScoredFragment
	searches       int
	emptyUntilCall int
}

func (s *stubIndex) Search(_ context.Context, _ []float32, _ int) ([]*vector.ScoredFragment, error) {
	s.searches++
	if s.searches <= s.emptyUntilCall {
		return nil, nil
	}
	return s.hits, nil
}

// scriptedCompleter answers the expansion call and the re-rank call in turn.
type scriptedCompleter struct {
	expansion    string
	expansionErr error
	rerank       string
	rerankErr    error
	calls        int
	prompts      []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string, _ int, _ float32) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.calls == 1 {
		return s.expansion, s.expansionErr
	}
	return s.rerank, s.rerankErr
}

func frag(fragID, sourceID, content string, score float64) *vector.ScoredFragment {
	return &vector.ScoredFragment{
		Fragment: &vector.Fragment{ID: fragID, SourceID: sourceID, Content: content},
		Score:    score,
	}
}

func TestRetrieve_ThresholdFiltering(t *testing.T) {
	// Scenario: threshold 0.65, scores [0.9, 0.7, 0.5, 0.3] -> keep 0.9, 0.7.
	index := &stubIndex{hits: []*vector.ScoredFragment{
		frag("f1", "cv-a", "profilo a", 0.8),
		frag("f2", "cv-b", "profilo b", 0.7),
		frag("f3", "cv-c", "profilo c", 0.6),
		frag("f4", "cv-d", "profilo d", 0.5),
	}}
	completer := &scriptedCompleter{
		expansion: "variante uno",
		rerank: `cv-a, 0.9, ottimo
cv-b, 0.7, buono
cv-c, 0.5, parziale
cv-d, 0.3, debole`,
	}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "job description", 0.65)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "cv-a", results[0].ID)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, "cv-b", results[1].ID)
	assert.Equal(t, 0.7, results[1].Score)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.65)
	}
}

func TestRetrieve_NoDuplicateIdentifiers(t *testing.T) {
	index := &stubIndex{hits: []*vector.ScoredFragment{
		frag("f1", "cv-a", "frammento uno", 0.9),
		frag("f2", "cv-a", "frammento due", 0.8), // same candidate, second fragment
		frag("f3", "cv-b", "profilo b", 0.7),
	}}
	completer := &scriptedCompleter{
		expansion: "",
		rerank: `cv-a, 0.8, matches
cv-a, 0.2, duplicate line
cv-b, 0.7, ok`,
	}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.0)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range results {
		require.False(t, seen[r.ID], "identifier %s appeared twice", r.ID)
		seen[r.ID] = true
	}
	require.Len(t, results, 2)
	assert.Equal(t, 0.8, results[0].Score, "first occurrence wins for cv-a")
	// Both fragments of cv-a reached the re-rank prompt.
	assert.Contains(t, completer.prompts[1], "frammento uno")
	assert.Contains(t, completer.prompts[1], "frammento due")
}

func TestRetrieve_DegradesToStage1OnRerankFailure(t *testing.T) {
	index := &stubIndex{hits: []*vector.ScoredFragment{
		frag("f1", "cv-a", "a", 0.9),
		frag("f2", "cv-b", "b", 0.8),
		frag("f3", "cv-c", "c", 0.7),
	}}
	completer := &scriptedCompleter{
		expansion: "",
		rerankErr: errors.New("service unavailable"),
	}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.65)
	require.NoError(t, err, "ranking failure must not fail the query")

	// Same identifiers, original candidate order, placeholder scores.
	require.Len(t, results, 3)
	assert.Equal(t, []string{"cv-a", "cv-b", "cv-c"},
		[]string{results[0].ID, results[1].ID, results[2].ID})
	for _, r := range results {
		assert.Equal(t, 1.0, r.Score)
	}
}

func TestRetrieve_FallsBackToDirectQueryOnEmptyExpansion(t *testing.T) {
	// Expansion produces 1 original + 2 variants = 3 searches, all empty;
	// the fallback direct query (4th search) finds the hit.
	index := &stubIndex{
		hits:           []*vector.ScoredFragment{frag("f1", "cv-a", "a", 0.9)},
		emptyUntilCall: 3,
	}
	completer := &scriptedCompleter{
		expansion: "variante uno\nvariante due",
		rerank:    "cv-a, 0.8, ok",
	}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4, index.searches)
}

func TestRetrieve_EmptyIndexReturnsEmpty(t *testing.T) {
	index := &stubIndex{}
	completer := &scriptedCompleter{expansion: "variante"}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, completer.calls, "no re-rank call for an empty candidate set")
}

func TestRetrieve_ExpansionFailureUsesDirectQueryOnly(t *testing.T) {
	index := &stubIndex{hits: []*vector.ScoredFragment{frag("f1", "cv-a", "a", 0.9)}}
	completer := &scriptedCompleter{
		expansionErr: errors.New("llm down"),
		rerank:       "cv-a, 0.9, ok",
	}
	embedder := &stubEmbedder{}
	e := NewEngine(embedder, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, embedder.calls, "only the direct query is embedded")
}

func TestRetrieve_StableSortOnTies(t *testing.T) {
	index := &stubIndex{hits: []*vector.ScoredFragment{
		frag("f1", "cv-a", "a", 0.9),
		frag("f2", "cv-b", "b", 0.8),
		frag("f3", "cv-c", "c", 0.7),
	}}
	completer := &scriptedCompleter{
		expansion: "",
		rerank: `cv-b, 0.8, tie
cv-a, 0.8, tie
cv-c, 0.9, best`,
	}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "cv-c", results[0].ID)
	// cv-a precedes cv-b in stage-1 order, so it wins the 0.8 tie.
	assert.Equal(t, "cv-a", results[1].ID)
	assert.Equal(t, "cv-b", results[2].ID)
}

func TestRetrieve_UnknownIdentifiersDropped(t *testing.T) {
	index := &stubIndex{hits: []*vector.ScoredFragment{frag("f1", "cv-a", "a", 0.9)}}
	completer := &scriptedCompleter{
		expansion: "",
		rerank: `cv-a, 0.9, ok
cv-invented, 0.99, hallucinated`,
	}
	e := NewEngine(&stubEmbedder{}, index, completer, 20, nil)

	results, err := e.Retrieve(context.Background(), "jd", 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cv-a", results[0].ID)
}

func TestRetrieve_EmptyJobDescriptionIsError(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubIndex{}, &scriptedCompleter{}, 20, nil)
	_, err := e.Retrieve(context.Background(), "   ", 0.5)
	require.Error(t, err)
}

func TestDynamicThreshold(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{name: "empty", scores: nil, want: 0},
		{name: "uniform scores", scores: []float64{0.8, 0.8, 0.8}, want: 0.8},
		{name: "spread scores", scores: []float64{0.9, 0.7, 0.5, 0.3}, want: 0.6 - 0.5*0.2236},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DynamicThreshold(tt.scores)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestBuildRerankPrompt_ContainsRubricAndAllCandidates(t *testing.T) {
	candidates := make([]Result, 5)
	for i := range candidates {
		candidates[i] = Result{ID: fmt.Sprintf("cv-%d", i), Content: fmt.Sprintf("profilo %d", i)}
	}

	prompt := buildRerankPrompt("cerco sviluppatore Go", candidates)

	assert.Contains(t, prompt, "cerco sviluppatore Go")
	assert.Contains(t, prompt, "1.0 = excellent fit")
	for i := range candidates {
		assert.Contains(t, prompt, fmt.Sprintf("Document ID: cv-%d", i))
	}
	// One batched prompt, not one per candidate.
	assert.Equal(t, 5, strings.Count(prompt, "Document ID: cv-"))
}
