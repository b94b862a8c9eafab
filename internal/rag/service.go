package rag

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"
)

const defaultFragmentTimeout = 30 * time.Second

// Service is the orchestrator. It sequences embed, retrieve, compose and
// generate for one question and maps failures to the stage they happened in.
// All per-request state is local, so a Service is safe for concurrent use
// once constructed.
type Service struct {
	retriever       *Retriever
	composer        *Composer
	generator       Generator
	fragmentTimeout time.Duration
	logger          *slog.Logger
}

func NewService(retriever *Retriever, composer *Composer, generator Generator, fragmentTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if fragmentTimeout <= 0 {
		fragmentTimeout = defaultFragmentTimeout
	}
	return &Service{
		retriever:       retriever,
		composer:        composer,
		generator:       generator,
		fragmentTimeout: fragmentTimeout,
		logger:          logger,
	}
}

// Ask answers one query. On failure the returned error is a *StageError
// naming the stage that failed and whether it is worth retrying; Ask never
// fabricates an answer. Answer.Sources is exactly the set of chunk IDs whose
// content was placed in the composed prompt.
func (s *Service) Ask(ctx context.Context, q Query) (*Answer, error) {
	start := time.Now()

	prompt, err := s.prepare(ctx, q)
	if err != nil {
		return nil, err
	}

	text, usage, err := s.generator.Generate(ctx, prompt, q.Params)
	if err != nil {
		return nil, &StageError{Stage: StageGenerate, Err: err}
	}

	answer := &Answer{
		Text:        text,
		Sources:     prompt.Sources,
		UsedContext: prompt.UsedContext,
		Elapsed:     time.Since(start),
		Usage:       usage,
	}
	s.logger.Info("question answered",
		"sources", len(prompt.Sources),
		"used_context", prompt.UsedContext,
		"elapsed", answer.Elapsed,
	)
	return answer, nil
}

// StreamAnswer carries retrieval metadata plus a lazy fragment sequence.
// Fragments is finite and non-restartable; breaking out of the loop cancels
// the underlying generation call. A fragment paired with a non-nil error is
// terminal; text received before an ErrGenerationTimeout is a usable partial
// answer.
type StreamAnswer struct {
	Sources     []string
	Dropped     []string
	UsedContext bool
	Fragments   iter.Seq2[string, error]
}

// AskStream runs the pipeline up to prompt composition, then returns the
// generation as a fragment stream guarded by the inter-fragment timeout.
func (s *Service) AskStream(ctx context.Context, q Query) (*StreamAnswer, error) {
	prompt, err := s.prepare(ctx, q)
	if err != nil {
		return nil, err
	}

	fragments := streamWithTimeout(ctx, s.fragmentTimeout, func(streamCtx context.Context) iter.Seq2[string, error] {
		return s.generator.GenerateStream(streamCtx, prompt, q.Params)
	})

	return &StreamAnswer{
		Sources:     prompt.Sources,
		Dropped:     prompt.Dropped,
		UsedContext: prompt.UsedContext,
		Fragments:   fragments,
	}, nil
}

func (s *Service) prepare(ctx context.Context, q Query) (ComposedPrompt, error) {
	if strings.TrimSpace(q.Content) == "" {
		return ComposedPrompt{}, &StageError{Stage: StageEmbed, Err: ErrEmptyContent}
	}

	matches, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return ComposedPrompt{}, &StageError{Stage: stageOf(err), Err: err}
	}

	prompt := s.composer.Compose(q, matches)
	if !prompt.UsedContext {
		s.logger.Info("answering without retrieved context", "modality", q.Modality)
	}
	return prompt, nil
}

// stageOf separates embedding failures from store failures inside the
// retrieval step, so the caller sees which collaborator broke.
func stageOf(err error) Stage {
	if errors.Is(err, ErrEmbeddingService) ||
		errors.Is(err, ErrUnsupportedModality) ||
		errors.Is(err, ErrEmptyContent) {
		return StageEmbed
	}
	return StageRetrieve
}
