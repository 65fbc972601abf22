// Package vector implements the candidate fragment index on top of Qdrant.
// Fragments carry a cosine-distance embedding and a payload linking back to
// the source candidate record.
package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// Index wraps the Qdrant client with connection management and health checks.
type Index struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewIndex creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable.
func NewIndex(host string, port int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &Index{
		client: client,
		host:   host,
		port:   port,
	}

	ctx := context.Background()
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return idx, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (x *Index) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return x.Health(ctx)
	}, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
func (x *Index) Health(ctx context.Context) error {
	result, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection ensures the candidate collection exists with 1536-dimension
// cosine vectors and a payload index on source_id. Idempotent - safe to call
// multiple times.
func (x *Index) EnsureCollection(ctx context.Context) error {
	collections, err := x.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     Dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// source_id is filtered on by deduplication and deletion paths.
	_, err = x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "source_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create source_id index: %w", err)
	}

	return nil
}

// ClearCollection deletes all points in the collection.
// Useful for re-indexing scenarios.
func (x *Index) ClearCollection(ctx context.Context) error {
	err := x.client.DeleteCollection(ctx, CollectionName)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	return x.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (x *Index) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (x *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, exponentialBackoff)
}

// Upsert stores fragments with their embeddings, batched in groups of 100.
func (x *Index) Upsert(ctx context.Context, fragments []*Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	for i, frag := range fragments {
		if len(frag.Embedding) != Dimension {
			return fmt.Errorf("%w: fragment %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(frag.Embedding), Dimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(fragments); i += batchSize {
		end := i + batchSize
		if end > len(fragments) {
			end = len(fragments)
		}

		batch := fragments[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, frag := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(frag.ID),
				Vectors: qdrant.NewVectors(frag.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"source_id":      frag.SourceID,
					"fragment_index": frag.Index,
					"content":        frag.Content,
				}),
			}
		}

		if err := x.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Search performs vector similarity search over fragments.
// Returns the top limit fragments with scores, ordered by score descending.
func (x *Index) Search(ctx context.Context, embedding []float32, limit int) ([]*ScoredFragment, error) {
	if len(embedding) != Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), Dimension)
	}

	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false), // Don't need vectors in response
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search fragments: %w", err)
	}

	hits := make([]*ScoredFragment, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		frag := &Fragment{
			ID:       result.Id.GetUuid(),
			SourceID: payload["source_id"].GetStringValue(),
			Index:    int(payload["fragment_index"].GetIntegerValue()),
			Content:  payload["content"].GetStringValue(),
		}

		hits = append(hits, &ScoredFragment{
			Fragment: frag,
			Score:    float64(result.Score), // Qdrant returns float32, convert to float64
		})
	}

	return hits, nil
}

// DeleteBySource removes every fragment belonging to the given candidate.
// Best-effort companion to record deletion; not atomic with it.
func (x *Index) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_id", sourceID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete fragments for %s: %w", sourceID, err)
	}
	return nil
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo retrieves collection statistics including total points count.
func (x *Index) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := x.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return &CollectionInfo{
		PointsCount: collection.GetPointsCount(),
	}, nil
}
