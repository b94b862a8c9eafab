package rag

import (
	"context"
	"fmt"
	"iter"
)

// Embedder converts content into a fixed-length vector, one method per
// modality to mirror the upstream embedding endpoints. Implementations wrap
// provider failures with ErrEmbeddingService.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, ref string) ([]float32, error)
}

// Generator produces an answer from a composed prompt. GenerateStream yields
// ordered text fragments; the sequence is finite and non-restartable, and
// abandoning the loop must release the underlying call. Implementations wrap
// provider failures with ErrGenerationService.
type Generator interface {
	Generate(ctx context.Context, prompt ComposedPrompt, params GenerationParams) (string, Usage, error)
	GenerateStream(ctx context.Context, prompt ComposedPrompt, params GenerationParams) iter.Seq2[string, error]
}

// Metric is the similarity metric a collection is built with.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dot"
	MetricEuclidean  Metric = "euclidean"
)

// CollectionSchema describes the vector collection one modality's chunks are
// stored in. Each modality gets its own collection because the embedding
// dimensionalities differ.
type CollectionSchema struct {
	Name       string
	Modality   Modality
	Dimensions int
	Metric     Metric
}

// Store is the narrow surface of the vector database.
//
// Insert has insert-or-replace semantics on Chunk.ID and fails with
// ErrSchemaMismatch when the embedding does not fit the collection.
// Search returns at most k matches for the given modality, ordered by
// descending similarity with ties broken by chunk ID ascending. Connection
// failures surface as ErrStoreUnavailable.
type Store interface {
	EnsureCollection(ctx context.Context, schema CollectionSchema) error
	Insert(ctx context.Context, chunk Chunk) error
	Search(ctx context.Context, vector []float32, k int, modality Modality) (RetrievalResult, error)
}

// embedContent dispatches to the modality-appropriate embedder method.
func embedContent(ctx context.Context, e Embedder, modality Modality, content string) ([]float32, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	switch modality {
	case ModalityText:
		return e.EmbedText(ctx, content)
	case ModalityImage:
		return e.EmbedImage(ctx, content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModality, modality)
	}
}
