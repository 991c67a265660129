package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex is a brute-force cosine similarity index. It backs local
// development and tests; production uses the Mongo-backed index.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	records   []memoryRecord
}

type memoryRecord struct {
	chunk Chunk
	seq   int
}

// NewMemoryIndex creates an index of fixed dimensionality. The first
// insert fixes the dimension when 0 is given.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension}
}

func (m *MemoryIndex) Insert(ctx context.Context, chunks []Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	for i := range chunks {
		if !scopeOf(chunks[i]).Valid() {
			return nil, ErrScopeRequired
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(chunks[0].Embedding)
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) != m.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(ch.Embedding), m.dimension)
		}
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ids[i] = ch.ID
		m.records = append(m.records, memoryRecord{chunk: ch, seq: len(m.records)})
	}
	return ids, nil
}

func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, k int, scope Scope) ([]Match, error) {
	if !scope.Valid() {
		return nil, ErrScopeRequired
	}
	if k <= 0 {
		k = 4
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dimension != 0 && len(embedding) != m.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), m.dimension)
	}

	type scored struct {
		rec   memoryRecord
		score float64
	}
	candidates := make([]scored, 0)
	for _, rec := range m.records {
		if rec.chunk.Metadata.UserID != scope.UserID || rec.chunk.Metadata.ChatID != scope.ChatID {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: CosineSimilarity(embedding, rec.chunk.Embedding)})
	}

	// Descending score, insertion order on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rec.seq < candidates[j].rec.seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	matches := make([]Match, 0, k)
	for _, c := range candidates[:k] {
		matches = append(matches, Match{Chunk: c.rec.chunk, Score: c.score})
	}
	return matches, nil
}

func (m *MemoryIndex) ListByScope(ctx context.Context, scope Scope, limit int) ([]Chunk, error) {
	if !scope.Valid() {
		return nil, ErrScopeRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chunks := make([]Chunk, 0)
	for _, rec := range m.records {
		if rec.chunk.Metadata.UserID != scope.UserID || rec.chunk.Metadata.ChatID != scope.ChatID {
			continue
		}
		chunks = append(chunks, rec.chunk)
		if limit > 0 && len(chunks) >= limit {
			break
		}
	}
	return chunks, nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, scope Scope, documentID string) error {
	if !scope.Valid() {
		return ErrScopeRequired
	}
	return m.deleteWhere(func(c Chunk) bool {
		return c.Metadata.UserID == scope.UserID &&
			c.Metadata.ChatID == scope.ChatID &&
			c.Metadata.DocumentID == documentID
	})
}

func (m *MemoryIndex) DeleteByScope(ctx context.Context, scope Scope) error {
	if !scope.Valid() {
		return ErrScopeRequired
	}
	return m.deleteWhere(func(c Chunk) bool {
		return c.Metadata.UserID == scope.UserID && c.Metadata.ChatID == scope.ChatID
	})
}

// Len reports the total number of stored chunks across all scopes.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryIndex) deleteWhere(match func(Chunk) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, rec := range m.records {
		if !match(rec.chunk) {
			kept = append(kept, rec)
		}
	}
	m.records = kept
	return nil
}

func scopeOf(c Chunk) Scope {
	return Scope{UserID: c.Metadata.UserID, ChatID: c.Metadata.ChatID}
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for zero-magnitude input.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
