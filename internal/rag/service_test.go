package rag_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcarvalho/askdocs/internal/rag"
	"github.com/jpcarvalho/askdocs/internal/testutil"
)

const (
	bridgeText = "The Golden Gate Bridge is a suspension bridge in San Francisco."
	towerText  = "The Eiffel Tower is a wrought-iron lattice tower in Paris."
)

// newTestService wires a Service over the in-memory doubles. Embeddings are
// 64-dimensional bag-of-words vectors, so related sentences rank close.
func newTestService(t *testing.T, store *testutil.MemStore, embedder *testutil.StubEmbedder, gen rag.Generator, fragmentTimeout time.Duration) *rag.Service {
	t.Helper()
	if embedder.Dims == 0 {
		embedder.Dims = 64
	}
	retriever := rag.NewRetriever(store, embedder, 5, 0.2, testLogger, rag.WithRetrieverRetry(fastRetry(0)))
	return rag.NewService(retriever, rag.NewComposer(12000), gen, fragmentTimeout, testLogger)
}

func seedCorpus(t *testing.T, store *testutil.MemStore) {
	t.Helper()
	for id, content := range map[string]string{
		"bridge": bridgeText,
		"tower":  towerText,
	} {
		err := store.Insert(context.Background(), rag.Chunk{
			ID:        id,
			Modality:  rag.ModalityText,
			Content:   content,
			Source:    "samples/" + id + ".txt",
			Embedding: testutil.WordVector(content, 64),
		})
		require.NoError(t, err)
	}
}

func TestAskAnswersFromRetrievedContext(t *testing.T) {
	store := testutil.NewMemStore()
	seedCorpus(t, store)

	gen := testutil.NewStubGenerator("The Golden Gate Bridge.")
	svc := newTestService(t, store, &testutil.StubEmbedder{}, gen, 0)

	answer, err := svc.Ask(context.Background(), rag.Query{
		Modality: rag.ModalityText,
		Content:  "What bridge is in San Francisco?",
		TopK:     1,
	})
	require.NoError(t, err)

	assert.Equal(t, "The Golden Gate Bridge.", answer.Text)
	assert.Equal(t, []string{"bridge"}, answer.Sources)
	assert.True(t, answer.UsedContext)
	assert.Greater(t, answer.Elapsed, time.Duration(0))

	assert.Contains(t, gen.LastPrompt.User, bridgeText)
	assert.NotContains(t, gen.LastPrompt.User, towerText)
	assert.Equal(t, gen.LastPrompt.Sources, answer.Sources)
}

func TestAskWithoutContextIsFlaggedNotFailed(t *testing.T) {
	gen := testutil.NewStubGenerator("From general knowledge: blue.")
	svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, gen, 0)

	answer, err := svc.Ask(context.Background(), rag.Query{
		Modality: rag.ModalityText,
		Content:  "What color is the sky?",
	})
	require.NoError(t, err)

	assert.False(t, answer.UsedContext)
	assert.Empty(t, answer.Sources)
	assert.Contains(t, gen.LastPrompt.System, "general knowledge")
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, testutil.NewStubGenerator(""), 0)

	_, err := svc.Ask(context.Background(), rag.Query{Modality: rag.ModalityText, Content: "   "})

	var stageErr *rag.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, rag.StageEmbed, stageErr.Stage)
	assert.ErrorIs(t, err, rag.ErrEmptyContent)
	assert.False(t, stageErr.Retryable())
}

func TestAskMapsFailuresToStages(t *testing.T) {
	question := rag.Query{Modality: rag.ModalityText, Content: "anything"}

	t.Run("embedding failure", func(t *testing.T) {
		embedder := &testutil.StubEmbedder{
			FailWith: map[string]error{"anything": fmt.Errorf("%w: 503", rag.ErrEmbeddingService)},
		}
		svc := newTestService(t, testutil.NewMemStore(), embedder, testutil.NewStubGenerator(""), 0)

		_, err := svc.Ask(context.Background(), question)

		var stageErr *rag.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, rag.StageEmbed, stageErr.Stage)
		assert.True(t, stageErr.Retryable())
	})

	t.Run("store failure", func(t *testing.T) {
		store := testutil.NewMemStore()
		store.SearchErr = fmt.Errorf("%w: connection refused", rag.ErrStoreUnavailable)
		svc := newTestService(t, store, &testutil.StubEmbedder{}, testutil.NewStubGenerator(""), 0)

		_, err := svc.Ask(context.Background(), question)

		var stageErr *rag.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, rag.StageRetrieve, stageErr.Stage)
		assert.True(t, stageErr.Retryable())
	})

	t.Run("generation failure", func(t *testing.T) {
		gen := &testutil.StubGenerator{Err: fmt.Errorf("%w: model overloaded", rag.ErrGenerationService), BlockAfter: -1}
		svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, gen, 0)

		_, err := svc.Ask(context.Background(), question)

		var stageErr *rag.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, rag.StageGenerate, stageErr.Stage)
		assert.True(t, stageErr.Retryable())
	})
}

func TestAskStreamDeliversOrderedFragments(t *testing.T) {
	store := testutil.NewMemStore()
	seedCorpus(t, store)

	gen := testutil.NewStubGenerator("", "The ", "Golden ", "Gate Bridge.")
	svc := newTestService(t, store, &testutil.StubEmbedder{}, gen, time.Second)

	stream, err := svc.AskStream(context.Background(), rag.Query{
		Modality: rag.ModalityText,
		Content:  "What bridge is in San Francisco?",
		TopK:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bridge"}, stream.Sources)
	assert.True(t, stream.UsedContext)

	var got string
	for fragment, err := range stream.Fragments {
		require.NoError(t, err)
		got += fragment
	}
	assert.Equal(t, "The Golden Gate Bridge.", got)

	require.Eventually(t, func() bool {
		return gen.Opens.Load() == 1 && gen.Closes.Load() == 1
	}, time.Second, 5*time.Millisecond, "stream producer must finish")
}

func TestAskStreamBreakingReleasesTheCall(t *testing.T) {
	gen := testutil.NewStubGenerator("", "first", "second", "third")
	svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, gen, time.Second)

	stream, err := svc.AskStream(context.Background(), rag.Query{Modality: rag.ModalityText, Content: "q"})
	require.NoError(t, err)

	var got []string
	for fragment, err := range stream.Fragments {
		require.NoError(t, err)
		got = append(got, fragment)
		break
	}
	assert.Equal(t, []string{"first"}, got)

	// Abandoning the loop cancels the generation; the producer must not leak.
	require.Eventually(t, func() bool {
		return gen.Closes.Load() == gen.Opens.Load() && gen.Opens.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAskStreamTimesOutBetweenFragments(t *testing.T) {
	gen := &testutil.StubGenerator{
		Fragments:  []string{"partial answer"},
		BlockAfter: 1, // stall after the first fragment
	}
	svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, gen, 30*time.Millisecond)

	stream, err := svc.AskStream(context.Background(), rag.Query{Modality: rag.ModalityText, Content: "q"})
	require.NoError(t, err)

	var got string
	var lastErr error
	for fragment, err := range stream.Fragments {
		got += fragment
		lastErr = err
	}

	assert.Equal(t, "partial answer", got, "text before the timeout is a usable partial answer")
	assert.ErrorIs(t, lastErr, rag.ErrGenerationTimeout)

	require.Eventually(t, func() bool {
		return gen.Closes.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAskStreamIsSingleUse(t *testing.T) {
	gen := testutil.NewStubGenerator("", "only")
	svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, gen, time.Second)

	stream, err := svc.AskStream(context.Background(), rag.Query{Modality: rag.ModalityText, Content: "q"})
	require.NoError(t, err)

	for _, err := range stream.Fragments {
		require.NoError(t, err)
	}

	var second error
	for _, err := range stream.Fragments {
		second = err
	}
	assert.ErrorIs(t, second, rag.ErrStreamConsumed)
	assert.Equal(t, int32(1), gen.Opens.Load(), "the generator must not be called again")
}

func TestAskStreamPropagatesPrepareFailure(t *testing.T) {
	svc := newTestService(t, testutil.NewMemStore(), &testutil.StubEmbedder{}, testutil.NewStubGenerator(""), 0)

	_, err := svc.AskStream(context.Background(), rag.Query{Modality: rag.ModalityText, Content: ""})

	var stageErr *rag.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, rag.StageEmbed, stageErr.Stage)
}

func TestStageErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &rag.StageError{Stage: rag.StageGenerate, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "generate")
	assert.False(t, err.Retryable())
}
