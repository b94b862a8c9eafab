package rag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

func TestSplitTextCoversWholeText(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog, então é útil cobrir caracteres multibyte também 0123456789"

	configs := []rag.ChunkingConfig{
		{Window: 10, Overlap: 0},
		{Window: 10, Overlap: 3},
		{Window: 7, Overlap: 6},
		{Window: 64, Overlap: 16},
		{Window: 1000, Overlap: 100},
	}

	for _, cfg := range configs {
		chunks, err := rag.SplitText(text, cfg)
		require.NoError(t, err)
		require.NotEmpty(t, chunks, "window=%d overlap=%d", cfg.Window, cfg.Overlap)

		// Every chunk fits the window, and stitching the chunks back together
		// with the overlap removed reproduces the input exactly.
		var rebuilt []rune
		for i, chunk := range chunks {
			runes := []rune(chunk)
			assert.LessOrEqual(t, len(runes), cfg.Window,
				"window=%d overlap=%d chunk=%d", cfg.Window, cfg.Overlap, i)

			if i == 0 {
				rebuilt = append(rebuilt, runes...)
				continue
			}
			skip := cfg.Overlap
			if skip > len(runes) {
				skip = len(runes)
			}
			rebuilt = append(rebuilt, runes[skip:]...)
		}
		assert.Equal(t, text, string(rebuilt), "window=%d overlap=%d", cfg.Window, cfg.Overlap)
	}
}

func TestSplitTextDeterministic(t *testing.T) {
	cfg := rag.ChunkingConfig{Window: 12, Overlap: 4}
	text := "determinism means the same input always produces the same chunks"

	first, err := rag.SplitText(text, cfg)
	require.NoError(t, err)
	second, err := rag.SplitText(text, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitTextExactWindow(t *testing.T) {
	chunks, err := rag.SplitText("0123456789", rag.ChunkingConfig{Window: 10, Overlap: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"0123456789"}, chunks)
}

func TestSplitTextEmpty(t *testing.T) {
	chunks, err := rag.SplitText("", rag.ChunkingConfig{Window: 10, Overlap: 2})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkingConfigValidate(t *testing.T) {
	invalid := []rag.ChunkingConfig{
		{Window: 0, Overlap: 0},
		{Window: -1, Overlap: 0},
		{Window: 5, Overlap: 5},
		{Window: 5, Overlap: 7},
		{Window: 5, Overlap: -1},
	}
	for _, cfg := range invalid {
		err := cfg.Validate()
		assert.ErrorIs(t, err, rag.ErrInvalidChunkingConfig, "window=%d overlap=%d", cfg.Window, cfg.Overlap)

		_, err = rag.SplitText("some text", cfg)
		assert.ErrorIs(t, err, rag.ErrInvalidChunkingConfig, "window=%d overlap=%d", cfg.Window, cfg.Overlap)
	}

	assert.NoError(t, rag.ChunkingConfig{Window: 1, Overlap: 0}.Validate())
	assert.NoError(t, rag.ChunkingConfig{Window: 2000, Overlap: 200}.Validate())
}
