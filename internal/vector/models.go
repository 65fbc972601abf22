package vector

// Fragment is the unit of embedding: a bounded-size slice of a candidate
// record's rendered text. Several fragments may point back to one candidate
// via SourceID.
type Fragment struct {
	ID        string    // UUID of the index point
	SourceID  string    // Candidate record identifier
	Index     int       // Position within the source document (0, 1, 2...)
	Content   string    // Fragment text
	Embedding []float32 // 1536-dim vector (text-embedding-3-small)
}

// ScoredFragment is a search hit with its raw similarity score.
type ScoredFragment struct {
	Fragment *Fragment
	Score    float64
}

// CollectionName is the single Qdrant collection for all candidate fragments.
const CollectionName = "candidates"

// Dimension is the embedding size for text-embedding-3-small.
const Dimension = 1536
