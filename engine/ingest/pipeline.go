// Package ingest runs the one-shot indexing pipeline:
// parse → chunk → embed → store. A failure at any stage aborts the run
// with no partial index left behind.
package ingest

import (
	"context"
	"log/slog"

	"github.com/finsightai/finsight/engine/docparse"
	"github.com/finsightai/finsight/engine/domain"
	"github.com/finsightai/finsight/engine/rag"
	"github.com/finsightai/finsight/engine/semantic"
	"github.com/finsightai/finsight/pkg/fn"
	"github.com/finsightai/finsight/pkg/resilience"
)

// Deps holds the external dependencies of the pipeline.
type Deps struct {
	Embedder rag.Embedder
	Index    semantic.Index
	Limiter  *resilience.Limiter
	Workers  int
	Logger   *slog.Logger
}

// Pipeline is the batch ingestion pipeline. Construct once per run.
type Pipeline struct {
	deps    Deps
	chunker ChunkerConfig
}

// New wires a pipeline from its dependencies.
func New(deps Deps, chunker ChunkerConfig) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Limiter == nil {
		deps.Limiter = resilience.NewLimiter(0, 0)
	}
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	return &Pipeline{deps: deps, chunker: chunker}
}

// Run ingests the document at path into a fresh collection and returns
// the number of chunks written.
func (p *Pipeline) Run(ctx context.Context, path string) (int, error) {
	parse := fn.Traced("ingest.parse", func(ctx context.Context, path string) fn.Result[docparse.Document] {
		return fn.FromPair(docparse.Parse(ctx, path))
	})
	chunk := fn.Traced("ingest.chunk", p.chunkStage)
	embed := fn.Traced("ingest.embed", p.embedStage)
	store := fn.Traced("ingest.store", p.storeStage)

	pipeline := fn.Then(fn.Then(fn.Then(parse, chunk), embed), store)
	count, err := pipeline(ctx, path).Unwrap()
	if err != nil {
		return 0, err
	}
	p.deps.Logger.Info("ingest complete", "file", path, "chunks", count)
	return count, nil
}

func (p *Pipeline) chunkStage(_ context.Context, doc docparse.Document) fn.Result[[]Chunk] {
	chunks := ChunkDocument(doc, p.chunker)
	p.deps.Logger.Info("chunked document", "file", doc.File, "pages", len(doc.Pages), "chunks", len(chunks))
	if len(chunks) == 0 {
		return fn.Err[[]Chunk](domain.Wrapf(domain.ErrParse, "ingest.chunk", "document %s produced no chunks", doc.File))
	}
	return fn.Ok(chunks)
}

// embedStage embeds independent chunks in parallel, each call gated by
// the rate limiter; any single failure aborts the run before anything
// is written.
func (p *Pipeline) embedStage(ctx context.Context, chunks []Chunk) fn.Result[[]semantic.Record] {
	dims := p.deps.Embedder.Dimensions()

	embedOne := resilience.LimitStage[Chunk, semantic.Record](p.deps.Limiter,
		func(ctx context.Context, c Chunk) fn.Result[semantic.Record] {
			vec, err := p.deps.Embedder.Embed(ctx, c.Text)
			if err != nil {
				return fn.Err[semantic.Record](err)
			}
			if len(vec) != dims {
				return fn.Err[semantic.Record](domain.Wrapf(domain.ErrEmbedding, "ingest.embed",
					"chunk %d: got %d dims, expected %d", c.Ordinal, len(vec), dims))
			}
			return fn.Ok(semantic.Record{
				ID:      c.ID,
				Vector:  vec,
				Text:    c.Text,
				File:    c.File,
				Page:    c.Page,
				Ordinal: c.Ordinal,
			})
		})

	results := fn.ParMapResult(chunks, p.deps.Workers, func(c Chunk) fn.Result[semantic.Record] {
		return embedOne(ctx, c)
	})
	return fn.Collect(results)
}

// storeStage writes all records only after every embedding succeeded; a
// failed upsert drops the fresh collection rather than leaving a
// partial index.
func (p *Pipeline) storeStage(ctx context.Context, records []semantic.Record) fn.Result[int] {
	manifest := semantic.Manifest{
		Model:      p.deps.Embedder.Model(),
		Dimensions: p.deps.Embedder.Dimensions(),
	}
	if err := p.deps.Index.Create(ctx, manifest); err != nil {
		return fn.Err[int](err)
	}
	if err := p.deps.Index.Upsert(ctx, records); err != nil {
		if dropErr := p.deps.Index.Drop(ctx); dropErr != nil {
			p.deps.Logger.Error("drop after failed upsert", "error", dropErr)
		}
		return fn.Err[int](err)
	}
	return fn.Ok(len(records))
}
