package rag

import "context"

// Embedder maps text to a fixed-dimension vector. The same instance (or
// an identically configured one) must serve both ingestion and query
// time against a given collection; the index manifest enforces this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding model/version.
	Model() string
	// Dimensions is the fixed output length D.
	Dimensions() int
}

// Synthesizer turns a rendered prompt into an answer via a
// language-model call. Implementations carry their own request timeout
// and fail rather than hang.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) (string, error)
}
