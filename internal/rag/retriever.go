package rag

import (
	"context"
	"log/slog"
	"sort"
)

// Retriever answers top-k similarity queries over the store. It embeds the
// query with the modality-appropriate model, asks the store for neighbors
// and drops anything below the similarity floor.
type Retriever struct {
	store    Store
	embedder Embedder
	topK     int     // default when the query does not ask for one
	floor    float64 // matches below this similarity are dropped
	retry    RetryConfig
	logger   *slog.Logger
}

// RetrieverOption tunes an optional knob on a Retriever.
type RetrieverOption func(*Retriever)

// WithRetrieverRetry overrides the default backoff policy.
func WithRetrieverRetry(cfg RetryConfig) RetrieverOption {
	return func(r *Retriever) { r.retry = cfg }
}

func NewRetriever(store Store, embedder Embedder, topK int, floor float64, logger *slog.Logger, opts ...RetrieverOption) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
		floor:    floor,
		retry:    DefaultRetryConfig(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most k matches ordered by descending similarity.
// Zero matches after floor filtering is a valid, empty result, not an error;
// the orchestrator decides how to answer without context.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (RetrievalResult, error) {
	k := q.TopK
	if k <= 0 {
		k = r.topK
	}
	if k <= 0 {
		return RetrievalResult{}, nil
	}

	var vector []float32
	err := withRetry(ctx, r.retry, r.logger, "embed query", func() error {
		var embedErr error
		vector, embedErr = embedContent(ctx, r.embedder, q.Modality, q.Content)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	var matches RetrievalResult
	err = withRetry(ctx, r.retry, r.logger, "store search", func() error {
		var searchErr error
		matches, searchErr = r.store.Search(ctx, vector, k, q.Modality)
		return searchErr
	})
	if err != nil {
		return nil, err
	}

	kept := make(RetrievalResult, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= r.floor {
			kept = append(kept, m)
		}
	}

	// Stores are expected to order results already; re-sorting here keeps the
	// descending-similarity, ID-ascending contract independent of the backend.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		return kept[i].Chunk.ID < kept[j].Chunk.ID
	})
	if len(kept) > k {
		kept = kept[:k]
	}

	r.logger.Debug("retrieval finished",
		"requested", k, "returned", len(kept), "floor", r.floor)
	return kept, nil
}
