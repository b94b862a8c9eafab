package testutil

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

// StubGenerator answers with scripted text and fragments. Opens and Closes
// count stream lifecycles so tests can assert no producer is left behind.
type StubGenerator struct {
	// Text is returned by Generate.
	Text string
	// Err, when set, fails Generate and the stream's first yield.
	Err error
	// Usage is returned by Generate alongside Text.
	Usage rag.Usage

	// Fragments are yielded in order by GenerateStream.
	Fragments []string
	// BlockAfter, when >= 0, blocks before yielding fragment number
	// BlockAfter until the context is cancelled.
	BlockAfter int

	// LastPrompt records the prompt of the most recent call.
	LastPrompt rag.ComposedPrompt

	Opens  atomic.Int32
	Closes atomic.Int32
}

func (g *StubGenerator) Generate(_ context.Context, prompt rag.ComposedPrompt, _ rag.GenerationParams) (string, rag.Usage, error) {
	g.LastPrompt = prompt
	if g.Err != nil {
		return "", rag.Usage{}, g.Err
	}
	return g.Text, g.Usage, nil
}

func (g *StubGenerator) GenerateStream(ctx context.Context, prompt rag.ComposedPrompt, _ rag.GenerationParams) iter.Seq2[string, error] {
	g.LastPrompt = prompt
	return func(yield func(string, error) bool) {
		g.Opens.Add(1)
		defer g.Closes.Add(1)

		if g.Err != nil {
			yield("", g.Err)
			return
		}
		for i, fragment := range g.Fragments {
			if g.BlockAfter >= 0 && i == g.BlockAfter {
				<-ctx.Done()
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// NewStubGenerator returns a generator that never blocks mid-stream.
func NewStubGenerator(text string, fragments ...string) *StubGenerator {
	return &StubGenerator{Text: text, Fragments: fragments, BlockAfter: -1}
}

var _ rag.Generator = (*StubGenerator)(nil)
