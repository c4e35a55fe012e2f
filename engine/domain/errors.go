// Package domain holds the shared error taxonomy and request validation
// used across the ingestion and query pipelines.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers branch on these with errors.Is; the
// orchestrator decides per kind whether a failure is fatal to startup
// or only to the single operation that produced it.
var (
	// ErrParse: the source document is missing, unreadable, or in an
	// unsupported format. Fatal to the ingestion run.
	ErrParse = errors.New("document parse failed")

	// ErrEmbedding: the embedding provider is unreachable or returned a
	// malformed response. Fatal to the ingestion run or the single query.
	ErrEmbedding = errors.New("embedding failed")

	// ErrCollectionNotFound: the named collection does not exist. Fatal
	// at engine construction.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch: the collection was built with a different
	// vector dimensionality than the configured embedder produces.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelMismatch: the collection was built by a different embedding
	// model. Mixing models silently degrades similarity semantics, so it
	// is asserted at engine construction rather than tolerated.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrSynthesis: the language-model call failed, timed out, or
	// returned a malformed response. Fatal to the single query.
	ErrSynthesis = errors.New("answer synthesis failed")

	// ErrConfiguration: a required credential or setting is absent.
	// Surfaced at construction, never deferred to first use.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrQuestionTooShort rejects questions below the minimum length.
	ErrQuestionTooShort = errors.New("question too short")
)

// PipelineError wraps a sentinel kind with the operation that failed and
// the underlying cause.
type PipelineError struct {
	Kind error
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *PipelineError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Wrap builds a PipelineError for the given kind and operation.
func Wrap(kind error, op string, err error) error {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// Wrapf builds a PipelineError with a formatted cause.
func Wrapf(kind error, op string, format string, args ...any) error {
	return &PipelineError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
