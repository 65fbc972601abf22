package retrieval

import "math"

// Result is one ranked candidate. Ephemeral: results live only for the
// duration of a query and are never persisted.
type Result struct {
	ID         string  // Candidate record identifier
	Score      float64 // Re-ranked relevance in [0,1], 4-decimal precision
	Reason     string  // Short justification from the re-ranker
	Similarity float64 // Raw stage-1 similarity score
	Content    string  // Fragment text retrieved in stage 1
}

// DynamicThreshold computes mean minus half a standard deviation over the
// given scores. An optional alternative to a fixed threshold when stage-1
// scores are informative; its soundness for small candidate sets is untested,
// so callers should prefer a fixed threshold unless they have validated it.
func DynamicThreshold(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(scores)))

	return mean - 0.5*std
}

// round4 truncates a score to 4-decimal precision.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
