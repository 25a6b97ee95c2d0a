package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

type memoryPoint struct {
	entry     Entry
	embedding []float32
}

// MemoryIndex is an in-process index used in standalone mode and tests.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]memoryPoint
}

// NewMemoryIndex constructs an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]memoryPoint)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, entry Entry, embedding []float32) error {
	_ = ctx
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[entry.ID] = memoryPoint{entry: entry, embedding: vec}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, jurisdiction string, topK int) ([]Result, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.points))
	for _, p := range m.points {
		if jurisdiction != "" && p.entry.Jurisdiction != jurisdiction {
			continue
		}
		results = append(results, Result{Entry: p.entry, Score: cosine(embedding, p.embedding)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ Index = (*MemoryIndex)(nil)
