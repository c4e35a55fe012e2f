// Package semantic owns vector index storage and nearest-neighbor search.
// All vectors in one collection come from a single embedding model; the
// model identity is recorded in a manifest and asserted when the
// collection is opened.
package semantic

import "context"

// Record is one indexed chunk: vector, text, and citation metadata.
type Record struct {
	ID      string
	Vector  []float32
	Text    string
	File    string
	Page    string
	Ordinal int
}

// Hit is one similarity search result.
type Hit struct {
	ID      string
	Score   float32
	Text    string
	File    string
	Page    string
	Ordinal int
}

// Manifest identifies the embedding space a collection was built in.
type Manifest struct {
	Model      string
	Dimensions int
}

// Index is the vector index contract. Writes happen only during
// ingestion; Search never mutates the collection and is safe for
// concurrent readers.
type Index interface {
	// Create prepares a fresh collection for ingestion. An existing
	// compatible collection is superseded; an existing collection built
	// in a different embedding space is an error, not silently reused.
	Create(ctx context.Context, m Manifest) error

	// Open attaches to an existing collection for querying. It fails
	// with the collection-not-found, dimension-mismatch, or
	// model-mismatch kinds.
	Open(ctx context.Context, m Manifest) error

	// Upsert writes records keyed by chunk ID. Safe to call with
	// independent batches in parallel.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to k hits ordered by descending similarity,
	// ties broken by chunk ordinal. An empty collection yields an empty
	// slice, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Drop removes the collection entirely.
	Drop(ctx context.Context) error
}
