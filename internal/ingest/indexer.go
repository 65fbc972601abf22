package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/textsplit"
	"github.com/talentbase/cvsearch/internal/vector"
)

// Embedder generates embedding vectors for text fragments.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// FragmentIndex accepts embedded fragments for similarity search.
type FragmentIndex interface {
	Upsert(ctx context.Context, fragments []*vector.Fragment) error
}

// Indexer converts committed record text into embedded fragments and upserts
// them into the vector index. Indexing runs after a successful commit and is
// best-effort enrichment: its failure never rolls the commit back.
type Indexer struct {
	splitter *textsplit.Splitter
	embedder Embedder
	index    FragmentIndex
	logger   *zap.Logger
}

// NewIndexer creates an Indexer. A nil splitter uses the default fragment
// size and overlap.
func NewIndexer(splitter *textsplit.Splitter, embedder Embedder, index FragmentIndex, logger *zap.Logger) *Indexer {
	if splitter == nil {
		splitter = textsplit.NewSplitter(0, -1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		splitter: splitter,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Index splits text into fragments, embeds them, and upserts them keyed back
// to sourceID. Returns the number of fragments indexed.
func (ix *Indexer) Index(ctx context.Context, sourceID, text string) (int, error) {
	texts := ix.splitter.Split(text)
	if len(texts) == 0 {
		return 0, nil
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings for %s: %w", sourceID, err)
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("embeddings for %s: got %d vectors for %d fragments",
			sourceID, len(embeddings), len(texts))
	}

	fragments := make([]*vector.Fragment, len(texts))
	for i, content := range texts {
		fragments[i] = &vector.Fragment{
			ID:        uuid.NewString(),
			SourceID:  sourceID,
			Index:     i,
			Content:   content,
			Embedding: embeddings[i],
		}
	}

	if err := ix.index.Upsert(ctx, fragments); err != nil {
		return 0, fmt.Errorf("upsert fragments for %s: %w", sourceID, err)
	}

	ix.logger.Info("indexed fragments",
		zap.String("source_id", sourceID), zap.Int("fragments", len(fragments)))
	return len(fragments), nil
}
