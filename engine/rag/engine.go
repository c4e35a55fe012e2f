// Package rag orchestrates the query pipeline: embed the question,
// retrieve the most similar chunks, render a grounding-constrained
// prompt, and synthesize a cited answer.
package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/finsightai/finsight/engine/domain"
	"github.com/finsightai/finsight/engine/semantic"
)

// Options configures the query pipeline. Constant per Engine instance.
type Options struct {
	// TopK is the retrieval breadth (similarity_top_k).
	TopK int
	// RequestTimeout bounds the synthesis call.
	RequestTimeout time.Duration
}

// DefaultOptions returns the defaults carried over from the reference
// deployment: three chunks of context, a one-minute synthesis bound.
func DefaultOptions() Options {
	return Options{TopK: 3, RequestTimeout: 60 * time.Second}
}

// Deps holds the engine's wired dependencies. All are read-only after
// construction, so one Engine serves concurrent callers.
type Deps struct {
	Embedder    Embedder
	Index       semantic.Index
	Synthesizer Synthesizer
}

// Engine is the query orchestrator. Construction is expensive (it opens
// and verifies the collection) and performed once; a construction
// failure is terminal — the hosting layer keeps the error and surfaces
// it on every request instead of retrying construction per call.
type Engine struct {
	embed  Embedder
	index  semantic.Index
	synth  Synthesizer
	opts   Options
	logger *slog.Logger
}

// Source is one cited chunk backing an answer.
type Source struct {
	Text  string  `json:"text"`
	File  string  `json:"file"`
	Page  string  `json:"page"`
	Score float32 `json:"score"`
}

// Answer is the query response: the synthesized text plus the chunks
// that were actually placed in the prompt, in prompt order.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// New constructs the engine and verifies the collection matches the
// configured embedding space. Any error here is a construction failure.
func New(ctx context.Context, deps Deps, opts Options, logger *slog.Logger) (*Engine, error) {
	const op = "rag.New"

	if deps.Embedder == nil || deps.Index == nil || deps.Synthesizer == nil {
		return nil, domain.Wrapf(domain.ErrConfiguration, op, "missing dependency")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultOptions().RequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	manifest := semantic.Manifest{
		Model:      deps.Embedder.Model(),
		Dimensions: deps.Embedder.Dimensions(),
	}
	if err := deps.Index.Open(ctx, manifest); err != nil {
		return nil, err
	}

	return &Engine{
		embed:  deps.Embedder,
		index:  deps.Index,
		synth:  deps.Synthesizer,
		opts:   opts,
		logger: logger,
	}, nil
}

// Query runs the full pipeline for one question. Errors are scoped to
// this call; they never affect subsequent queries.
func (e *Engine) Query(ctx context.Context, question string) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}

	start := time.Now()
	vec, err := e.embed.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := e.index.Search(ctx, vec, e.opts.TopK)
	if err != nil {
		return nil, err
	}
	e.logger.Info("retrieved context", "hits", len(hits), "top_k", e.opts.TopK)

	// Zero hits still renders an empty-context prompt; the grounding
	// rules drive the model to the fallback answer.
	prompt := RenderPrompt(question, hits)

	synthCtx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()
	text, err := e.synth.Synthesize(synthCtx, prompt)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{Text: h.Text, File: h.File, Page: h.Page, Score: h.Score}
	}

	e.logger.Info("query answered",
		"question_len", len(question),
		"sources", len(sources),
		"fallback", IsFallback(text),
		"duration", time.Since(start),
	)
	return &Answer{Text: text, Sources: sources}, nil
}
