package rag_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

func scored(id, content string, similarity float64) rag.ScoredChunk {
	return rag.ScoredChunk{
		Chunk: rag.Chunk{
			ID:       id,
			Modality: rag.ModalityText,
			Content:  content,
			Source:   "docs/" + id + ".md",
		},
		Similarity: similarity,
	}
}

func TestComposeIncludesChunksInOrder(t *testing.T) {
	q := rag.Query{Modality: rag.ModalityText, Content: "what is kept?"}
	matches := rag.RetrievalResult{
		scored("c1", "first excerpt", 0.9),
		scored("c2", "second excerpt", 0.7),
	}

	prompt := rag.NewComposer(0).Compose(q, matches)

	assert.True(t, prompt.UsedContext)
	assert.Equal(t, []string{"c1", "c2"}, prompt.Sources)
	assert.Empty(t, prompt.Dropped)

	assert.Contains(t, prompt.User, "what is kept?")
	assert.Contains(t, prompt.User, "first excerpt")
	assert.Contains(t, prompt.User, "second excerpt")
	assert.Less(t,
		strings.Index(prompt.User, "[DOC c1]"),
		strings.Index(prompt.User, "[DOC c2]"),
	)
	assert.Contains(t, prompt.System, "ONLY based on the provided excerpts")
}

func TestComposeDeterministic(t *testing.T) {
	q := rag.Query{Modality: rag.ModalityText, Content: "same question"}
	matches := rag.RetrievalResult{
		scored("a", strings.Repeat("x", 40), 0.8),
		scored("b", strings.Repeat("y", 40), 0.6),
	}

	composer := rag.NewComposer(50)
	first := composer.Compose(q, matches)
	second := composer.Compose(q, matches)

	require.Equal(t, first, second)
}

func TestComposeBudgetDropsLowestSimilarityFirst(t *testing.T) {
	q := rag.Query{Modality: rag.ModalityText, Content: "budgeted"}
	matches := rag.RetrievalResult{
		scored("c1", "aaaaaaaaaa", 0.9), // 10 chars each
		scored("c2", "bbbbbbbbbb", 0.8),
		scored("c3", "cccccccccc", 0.3),
	}

	prompt := rag.NewComposer(25).Compose(q, matches)

	assert.Equal(t, []string{"c1", "c2"}, prompt.Sources)
	assert.Equal(t, []string{"c3"}, prompt.Dropped)
	assert.True(t, prompt.UsedContext)
	assert.Contains(t, prompt.User, "aaaaaaaaaa")
	assert.NotContains(t, prompt.User, "cccccccccc")
}

func TestComposeBudgetCanDropEverything(t *testing.T) {
	q := rag.Query{Modality: rag.ModalityText, Content: "tiny budget"}
	matches := rag.RetrievalResult{
		scored("c1", "aaaaaaaaaa", 0.9),
		scored("c2", "bbbbbbbbbb", 0.8),
	}

	prompt := rag.NewComposer(5).Compose(q, matches)

	assert.False(t, prompt.UsedContext)
	assert.Empty(t, prompt.Sources)
	assert.Equal(t, []string{"c2", "c1"}, prompt.Dropped)
}

func TestComposeWithoutMatches(t *testing.T) {
	q := rag.Query{Modality: rag.ModalityText, Content: "anything indexed?"}

	prompt := rag.NewComposer(1000).Compose(q, rag.RetrievalResult{})

	assert.False(t, prompt.UsedContext)
	assert.Empty(t, prompt.Sources)
	assert.Contains(t, prompt.System, "general knowledge")
	assert.NotContains(t, prompt.User, "[DOC")
}

func TestComposeAnswerLanguage(t *testing.T) {
	composer := rag.NewComposer(0)

	english := composer.Compose(rag.Query{Modality: rag.ModalityText, Content: "Where is the Golden Gate Bridge located?"}, nil)
	assert.Contains(t, english.System, "Answer in English")

	// Image queries are a path or URI, not prose, so language detection is
	// skipped for them.
	image := composer.Compose(rag.Query{Modality: rag.ModalityImage, Content: "file:///tmp/photo.png"}, nil)
	assert.Contains(t, image.System, "Answer in English")
}

func TestComposeSourcesMatchPromptDocs(t *testing.T) {
	q := rag.Query{Modality: rag.ModalityText, Content: "which docs appear?"}
	matches := rag.RetrievalResult{
		scored("keep-1", strings.Repeat("k", 10), 0.9),
		scored("drop-1", strings.Repeat("d", 100), 0.1),
	}

	prompt := rag.NewComposer(20).Compose(q, matches)

	for _, id := range prompt.Sources {
		assert.Contains(t, prompt.User, fmt.Sprintf("[DOC %s]", id))
	}
	for _, id := range prompt.Dropped {
		assert.NotContains(t, prompt.User, fmt.Sprintf("[DOC %s]", id))
	}
}
