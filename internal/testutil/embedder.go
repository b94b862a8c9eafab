// Package testutil provides deterministic test doubles for the RAG
// collaborators: an embedder with canned or derived vectors, an in-memory
// vector store and a scripted generator.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// StubEmbedder returns deterministic vectors so similarity behaves like a
// (very small) real embedding space. Failures can be injected per content.
type StubEmbedder struct {
	mu sync.Mutex

	// Dims is the vector dimensionality (default 16).
	Dims int
	// Vectors overrides the derived vector for specific content.
	Vectors map[string][]float32
	// FailWith makes embedding the given content fail permanently.
	FailWith map[string]error
	// FailTimes makes embedding the given content fail N times before
	// succeeding, for retry tests. Requires FailWith for the error value.
	FailTimes map[string]int

	TextCalls  int
	ImageCalls int
}

func (e *StubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TextCalls++
	return e.embed(text)
}

func (e *StubEmbedder) EmbedImage(_ context.Context, ref string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ImageCalls++
	return e.embed(ref)
}

func (e *StubEmbedder) embed(content string) ([]float32, error) {
	if err, ok := e.FailWith[content]; ok {
		if remaining, transient := e.FailTimes[content]; transient {
			if remaining > 0 {
				e.FailTimes[content] = remaining - 1
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	if v, ok := e.Vectors[content]; ok {
		return v, nil
	}
	dims := e.Dims
	if dims <= 0 {
		dims = 16
	}
	return WordVector(content, dims), nil
}

// WordVector derives a normalized bag-of-words vector, so texts sharing words
// get a high cosine similarity. Deterministic by construction.
func WordVector(s string, dims int) []float32 {
	v := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
