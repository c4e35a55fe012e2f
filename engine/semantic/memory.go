package semantic

import (
	"context"
	"math"
	"sync"

	"github.com/finsightai/finsight/engine/domain"
)

// MemoryIndex is a brute-force cosine-similarity Index kept in memory.
// It backs tests and local runs that have no Qdrant available.
type MemoryIndex struct {
	mu       sync.RWMutex
	created  bool
	manifest Manifest
	records  map[string]Record
}

// NewMemory creates an empty in-memory index.
func NewMemory() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]Record)}
}

// Create implements Index.
func (m *MemoryIndex) Create(_ context.Context, man Manifest) error {
	const op = "semantic.MemoryIndex.Create"

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		if m.manifest.Dimensions != man.Dimensions {
			return domain.Wrapf(domain.ErrDimensionMismatch, op,
				"index has %d dims, embedder produces %d", m.manifest.Dimensions, man.Dimensions)
		}
		if m.manifest.Model != man.Model {
			return domain.Wrapf(domain.ErrModelMismatch, op,
				"index built by %q, configured %q", m.manifest.Model, man.Model)
		}
	}
	m.created = true
	m.manifest = man
	m.records = make(map[string]Record)
	return nil
}

// Open implements Index.
func (m *MemoryIndex) Open(_ context.Context, man Manifest) error {
	const op = "semantic.MemoryIndex.Open"

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return domain.Wrapf(domain.ErrCollectionNotFound, op, "index not created")
	}
	if m.manifest.Dimensions != man.Dimensions {
		return domain.Wrapf(domain.ErrDimensionMismatch, op,
			"index has %d dims, embedder produces %d", m.manifest.Dimensions, man.Dimensions)
	}
	if m.manifest.Model != man.Model {
		return domain.Wrapf(domain.ErrModelMismatch, op,
			"index built by %q, configured %q", m.manifest.Model, man.Model)
	}
	return nil
}

// Upsert implements Index; records are keyed by ID, so re-upserting a
// chunk replaces it.
func (m *MemoryIndex) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return domain.Wrapf(domain.ErrCollectionNotFound, "semantic.MemoryIndex.Upsert", "index not created")
	}
	for _, r := range records {
		if len(r.Vector) != m.manifest.Dimensions {
			return domain.Wrapf(domain.ErrDimensionMismatch, "semantic.MemoryIndex.Upsert",
				"record %s has %d dims, index expects %d", r.ID, len(r.Vector), m.manifest.Dimensions)
		}
		m.records[r.ID] = r
	}
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		hits = append(hits, Hit{
			ID:      r.ID,
			Score:   cosine(vector, r.Vector),
			Text:    r.Text,
			File:    r.File,
			Page:    r.Page,
			Ordinal: r.Ordinal,
		})
	}
	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Drop implements Index.
func (m *MemoryIndex) Drop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = false
	m.records = make(map[string]Record)
	return nil
}

// Len reports the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
