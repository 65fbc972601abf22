// Package llm provides text-completion clients used by the structuring stage
// and the retrieval engine. Callers depend on the Completer interface so the
// provider can be swapped per pipeline stage.
package llm

import "context"

// Completer is a single-shot text completion service. Implementations must be
// safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}
