package semantic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/finsightai/finsight/engine/domain"
)

func testManifest() Manifest {
	return Manifest{Model: "nomic-embed-text", Dimensions: 3}
}

func seed(t *testing.T, idx *MemoryIndex, records ...Record) {
	t.Helper()
	if err := idx.Create(context.Background(), testManifest()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := idx.Upsert(context.Background(), records); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestOpen_NotCreated(t *testing.T) {
	idx := NewMemory()
	err := idx.Open(context.Background(), testManifest())
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestOpen_DimensionMismatch(t *testing.T) {
	idx := NewMemory()
	seed(t, idx)

	bad := testManifest()
	bad.Dimensions = 768
	if err := idx.Open(context.Background(), bad); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOpen_ModelMismatch(t *testing.T) {
	idx := NewMemory()
	seed(t, idx)

	bad := testManifest()
	bad.Model = "text-embedding-3-small"
	if err := idx.Open(context.Background(), bad); !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestSearch_SelfMatchRanksFirst(t *testing.T) {
	idx := NewMemory()
	seed(t, idx,
		Record{ID: "a", Vector: []float32{1, 0, 0}, Text: "alpha", Ordinal: 0},
		Record{ID: "b", Vector: []float32{0, 1, 0}, Text: "beta", Ordinal: 1},
		Record{ID: "c", Vector: []float32{0.7, 0.7, 0}, Text: "gamma", Ordinal: 2},
	)

	hits, err := idx.Search(context.Background(), []float32{0, 1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "b" {
		t.Errorf("self-match not at rank 1: %+v", hits[0])
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, hits[i].Score, hits[i-1].Score)
		}
	}
}

func TestSearch_TieBreakByOrdinal(t *testing.T) {
	idx := NewMemory()
	// Identical vectors force equal scores.
	seed(t, idx,
		Record{ID: "later", Vector: []float32{1, 0, 0}, Ordinal: 5},
		Record{ID: "earlier", Vector: []float32{1, 0, 0}, Ordinal: 2},
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits[0].ID != "earlier" || hits[1].ID != "later" {
		t.Errorf("tie not broken by ordinal: %+v", hits)
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	idx := NewMemory()
	seed(t, idx)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("empty collection must not error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestSearch_MonotonicRecall(t *testing.T) {
	idx := NewMemory()
	var records []Record
	for i := 0; i < 8; i++ {
		records = append(records, Record{
			ID:      fmt.Sprintf("chunk-%d", i),
			Vector:  []float32{float32(i), 1, 0.5},
			Ordinal: i,
		})
	}
	seed(t, idx, records...)

	query := []float32{7, 1, 0.5}
	top1, err := idx.Search(context.Background(), query, 1)
	if err != nil || len(top1) != 1 {
		t.Fatalf("k=1 search: %v, %d hits", err, len(top1))
	}
	top3, err := idx.Search(context.Background(), query, 3)
	if err != nil {
		t.Fatalf("k=3 search: %v", err)
	}

	found := false
	for _, h := range top3 {
		if h.ID == top1[0].ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("k=1 winner %s absent from k=3 results", top1[0].ID)
	}
}

func TestSearch_ResultBoundedByCollectionSize(t *testing.T) {
	idx := NewMemory()
	seed(t, idx, Record{ID: "only", Vector: []float32{1, 2, 3}, Ordinal: 0})

	hits, err := idx.Search(context.Background(), []float32{1, 2, 3}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected min(k, size)=1, got %d", len(hits))
	}
}

func TestUpsert_ReplacesByID(t *testing.T) {
	idx := NewMemory()
	seed(t, idx, Record{ID: "a", Vector: []float32{1, 0, 0}, Text: "old", Ordinal: 0})

	err := idx.Upsert(context.Background(), []Record{{ID: "a", Vector: []float32{1, 0, 0}, Text: "new", Ordinal: 0}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 record after replace, got %d", idx.Len())
	}
	hits, _ := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	if hits[0].Text != "new" {
		t.Errorf("record not replaced: %q", hits[0].Text)
	}
}

func TestUpsert_WrongDimensions(t *testing.T) {
	idx := NewMemory()
	seed(t, idx)

	err := idx.Upsert(context.Background(), []Record{{ID: "x", Vector: []float32{1, 2}}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCreate_SupersedesCompatible(t *testing.T) {
	idx := NewMemory()
	seed(t, idx, Record{ID: "a", Vector: []float32{1, 0, 0}, Ordinal: 0})

	if err := idx.Create(context.Background(), testManifest()); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("recreate must start fresh, got %d records", idx.Len())
	}
}

func TestCreate_RejectsIncompatible(t *testing.T) {
	idx := NewMemory()
	seed(t, idx)

	bad := Manifest{Model: "nomic-embed-text", Dimensions: 768}
	if err := idx.Create(context.Background(), bad); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
