package testutil

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

// MemStore is an in-memory rag.Store with cosine similarity, for tests only.
type MemStore struct {
	mu      sync.Mutex
	chunks  map[string]rag.Chunk
	schemas map[rag.Modality]rag.CollectionSchema

	// InsertErr, when set, fails the next FailInserts calls (or all calls if
	// FailInserts is negative).
	InsertErr   error
	FailInserts int
	// SearchErr, when set, fails every Search call.
	SearchErr error
}

func NewMemStore() *MemStore {
	return &MemStore{
		chunks:  make(map[string]rag.Chunk),
		schemas: make(map[rag.Modality]rag.CollectionSchema),
	}
}

func (s *MemStore) EnsureCollection(_ context.Context, schema rag.CollectionSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schema.Modality] = schema
	return nil
}

func (s *MemStore) Insert(_ context.Context, c rag.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil && s.FailInserts != 0 {
		if s.FailInserts > 0 {
			s.FailInserts--
		}
		return s.InsertErr
	}
	s.chunks[c.ID] = c
	return nil
}

func (s *MemStore) Search(_ context.Context, vector []float32, k int, modality rag.Modality) (rag.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if k <= 0 {
		return rag.RetrievalResult{}, nil
	}

	var matches rag.RetrievalResult
	for _, c := range s.chunks {
		if c.Modality != modality {
			continue
		}
		matches = append(matches, rag.ScoredChunk{
			Chunk:      c,
			Similarity: cosine(vector, c.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len returns the number of stored chunks.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Get returns a stored chunk by ID.
func (s *MemStore) Get(id string) (rag.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	return c, ok
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ rag.Store = (*MemStore)(nil)
