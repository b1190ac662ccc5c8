// Package embedding provides clients for the external text-embedding provider.
package embedding

import "context"

// Provider turns text into a fixed-length vector using a single model.
type Provider interface {
	// Model returns the identifier stored alongside produced vectors.
	Model() string

	// Embed returns the embedding of input. No retries are performed.
	Embed(ctx context.Context, input string) ([]float32, error)
}
