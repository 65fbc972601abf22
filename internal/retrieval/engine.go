// Package retrieval ranks stored candidates against a job description with a
// two-stage search: vector similarity produces a candidate set, then a single
// batched LLM call re-scores it against an explicit rubric.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/llm"
	"github.com/talentbase/cvsearch/internal/vector"
)

const (
	// DefaultTopK is the stage-1 candidate set size.
	DefaultTopK = 20

	// queryVariants is how many paraphrases the multi-query expansion asks for.
	queryVariants = 3

	expansionMaxTokens = 400
	rerankMaxTokens    = 4000
)

// QueryEmbedder embeds a query string for similarity search.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex performs vector similarity search over candidate fragments.
type SearchIndex interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]*vector.ScoredFragment, error)
}

// Engine is the retrieval engine. Stage 1 queries the vector index (with
// LLM-driven multi-query expansion and a direct-query fallback); stage 2
// re-ranks the candidate set with one batched completion call.
type Engine struct {
	embedder  QueryEmbedder
	index     SearchIndex
	completer llm.Completer
	topK      int
	logger    *zap.Logger
}

// NewEngine creates an Engine. topK <= 0 selects DefaultTopK.
func NewEngine(embedder QueryEmbedder, index SearchIndex, completer llm.Completer, topK int, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder:  embedder,
		index:     index,
		completer: completer,
		topK:      topK,
		logger:    logger,
	}
}

// Retrieve ranks stored candidates against the job description. Every
// returned score is >= threshold and no identifier appears twice; results are
// ordered by score descending with ties broken by stage-1 candidate order.
// If the re-ranking call fails the stage-1 candidate set is returned
// unranked, in original order: quality degrades, the query never fails for
// that reason.
func (e *Engine) Retrieve(ctx context.Context, jobDescription string, threshold float64) ([]Result, error) {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		return nil, fmt.Errorf("empty job description")
	}

	candidates, err := e.candidates(ctx, jobDescription)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		e.logger.Info("no candidates found")
		return nil, nil
	}

	e.logger.Info("stage 1 complete", zap.Int("candidates", len(candidates)))
	return e.rerank(ctx, jobDescription, candidates, threshold), nil
}

// candidates runs stage 1: multi-query expansion unioned over the index,
// falling back to a single direct similarity query when the union comes back
// empty. Fragments are deduplicated by source identifier, first occurrence
// wins, and each surviving candidate gets the placeholder score 1.0 (stage 1
// produces the set, not a differentiating score).
func (e *Engine) candidates(ctx context.Context, jobDescription string) ([]Result, error) {
	queries := e.expandQueries(ctx, jobDescription)

	hits, err := e.searchUnion(ctx, queries)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 && len(queries) > 1 {
		e.logger.Info("expanded queries returned nothing, falling back to direct query")
		hits, err = e.searchUnion(ctx, []string{jobDescription})
		if err != nil {
			return nil, err
		}
	}

	var results []Result
	seen := map[string]int{} // source id -> index into results
	for _, hit := range hits {
		if idx, ok := seen[hit.Fragment.SourceID]; ok {
			// Same candidate surfaced via another fragment; append the text
			// so the re-ranker sees everything retrieved for it.
			results[idx].Content += "\n" + hit.Fragment.Content
			continue
		}
		seen[hit.Fragment.SourceID] = len(results)
		results = append(results, Result{
			ID:         hit.Fragment.SourceID,
			Score:      1.0, // placeholder until re-ranked
			Similarity: hit.Score,
			Content:    hit.Fragment.Content,
		})
	}

	return results, nil
}

// expandQueries asks the completion service for paraphrases of the job
// description. Expansion failure degrades to the original query alone.
func (e *Engine) expandQueries(ctx context.Context, jobDescription string) []string {
	prompt := fmt.Sprintf(`You are an AI assistant helping with candidate search.
Generate %d different rephrasings of the following job description query, each
capturing its requirements from a different angle, so that vector similarity
search retrieves a broader candidate set.
Output one rephrasing per line with no numbering and no other text.

Job description:
%s`, queryVariants, jobDescription)

	response, err := e.completer.Complete(ctx, prompt, expansionMaxTokens, 0)
	if err != nil {
		e.logger.Warn("query expansion failed, using direct query only", zap.Error(err))
		return []string{jobDescription}
	}

	queries := []string{jobDescription}
	for _, line := range strings.Split(response, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
	}
	return queries
}

// searchUnion embeds each query, searches the index, and unions the hits in
// encounter order.
func (e *Engine) searchUnion(ctx context.Context, queries []string) ([]*vector.ScoredFragment, error) {
	var union []*vector.ScoredFragment
	seen := map[string]bool{} // fragment id

	for _, q := range queries {
		embedding, err := e.embedder.Embed(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}

		hits, err := e.index.Search(ctx, embedding, e.topK)
		if err != nil {
			return nil, fmt.Errorf("similarity search: %w", err)
		}

		for _, hit := range hits {
			if seen[hit.Fragment.ID] {
				continue
			}
			seen[hit.Fragment.ID] = true
			union = append(union, hit)
		}
	}

	return union, nil
}

// rerank runs stage 2: one batched completion over the full candidate set,
// parsed against the strict line grammar, threshold-filtered, and stably
// sorted by score descending. On completion failure the unranked stage-1 set
// is returned as-is.
func (e *Engine) rerank(ctx context.Context, jobDescription string, candidates []Result, threshold float64) []Result {
	prompt := buildRerankPrompt(jobDescription, candidates)

	response, err := e.completer.Complete(ctx, prompt, rerankMaxTokens, 0)
	if err != nil {
		e.logger.Warn("re-ranking failed, returning unranked stage-1 candidates", zap.Error(err))
		return candidates
	}

	byID := make(map[string]int, len(candidates)) // id -> stage-1 order
	for i, c := range candidates {
		byID[c.ID] = i
	}

	var ranked []Result
	for _, line := range parseRerankResponse(response, e.logger) {
		idx, ok := byID[line.ID]
		if !ok {
			e.logger.Warn("re-ranker returned unknown identifier", zap.String("id", line.ID))
			continue
		}
		if line.Score < threshold {
			continue
		}

		r := candidates[idx]
		r.Score = line.Score
		r.Reason = line.Reason
		ranked = append(ranked, r)
	}

	// Stable: ties keep stage-1 candidate order because parsing preserved it
	// per identifier and the sort does not reorder equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return byID[ranked[i].ID] < byID[ranked[j].ID]
	})

	e.logger.Info("stage 2 complete",
		zap.Int("ranked", len(ranked)),
		zap.Float64("threshold", threshold))
	return ranked
}

// buildRerankPrompt batches every candidate into one scoring request.
// Batching is required: per-candidate calls produce incomparable scores.
func buildRerankPrompt(jobDescription string, candidates []Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are an expert technical recruiter. Score each candidate below for fit
against the job description on a scale from 0.0 to 1.0:
  1.0 = excellent fit, matches all core requirements
  0.8 = very good fit, matches most core requirements
  0.5 = partial fit, matches some requirements
  below 0.3 = weak fit

Job description:
%s

Candidates:
`, jobDescription)

	for _, c := range candidates {
		fmt.Fprintf(&b, "\nDocument ID: %s\n%s\n", c.ID, c.Content)
	}

	b.WriteString(`
Respond with exactly one line per candidate, in the format:
Document ID: <identifier>, Score: <score>, Reason: <short justification>
No other text.`)

	return b.String()
}
