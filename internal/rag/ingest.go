package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace seeds deterministic chunk IDs so re-ingesting a source
// replaces its previous chunks instead of duplicating them.
var chunkNamespace = uuid.MustParse("3b7fb54e-9c0f-4c1a-9d2e-6f1f3a7c5b21")

// ChunkID derives the stable identifier for position i of a source.
func ChunkID(source string, position int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%s#%d", source, position)).String()
}

// Pipeline turns raw documents into embedded chunks in the store.
// A failure on one chunk is recorded and the batch continues; the pipeline
// is not transactional across chunks.
type Pipeline struct {
	store    Store
	embedder Embedder
	chunking ChunkingConfig
	retry    RetryConfig
	logger   *slog.Logger
}

// PipelineOption tunes an optional knob on a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineRetry overrides the default backoff policy.
func WithPipelineRetry(cfg RetryConfig) PipelineOption {
	return func(p *Pipeline) { p.retry = cfg }
}

// NewPipeline validates the chunking config up front so splitting can never
// fail mid-batch.
func NewPipeline(store Store, embedder Embedder, chunking ChunkingConfig, logger *slog.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if err := chunking.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:    store,
		embedder: embedder,
		chunking: chunking,
		retry:    DefaultRetryConfig(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest splits, embeds and stores the given documents. Chunks from the same
// source keep their sequential position for later citation. The returned
// report counts per-chunk successes and failures; an error is returned only
// for caller mistakes such as an unknown modality.
func (p *Pipeline) Ingest(ctx context.Context, docs []Document) (*IngestReport, error) {
	report := &IngestReport{}

	for _, doc := range docs {
		units, err := p.units(doc)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", doc.Source, err)
		}

		for i, content := range units {
			id := ChunkID(doc.Source, i)
			if err := p.ingestOne(ctx, doc, id, i, content); err != nil {
				report.Failed++
				report.Failures = append(report.Failures, ChunkFailure{
					ChunkID:  id,
					Source:   doc.Source,
					Position: i,
					Reason:   err.Error(),
				})
				p.logger.Warn("chunk ingestion failed",
					"source", doc.Source, "position", i, "error", err)
				continue
			}
			report.Succeeded++
		}
	}

	p.logger.Info("ingestion batch finished",
		"succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// units expands a document into embeddable pieces. Text is windowed; an
// image is a single unit referencing its content.
func (p *Pipeline) units(doc Document) ([]string, error) {
	switch doc.Modality {
	case ModalityText:
		return SplitText(doc.Content, p.chunking)
	case ModalityImage:
		if doc.Content == "" {
			return nil, ErrEmptyContent
		}
		return []string{doc.Content}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModality, doc.Modality)
	}
}

func (p *Pipeline) ingestOne(ctx context.Context, doc Document, id string, position int, content string) error {
	var vector []float32
	err := withRetry(ctx, p.retry, p.logger, "embed chunk", func() error {
		var embedErr error
		vector, embedErr = embedContent(ctx, p.embedder, doc.Modality, content)
		return embedErr
	})
	if err != nil {
		return err
	}

	chunk := Chunk{
		ID:        id,
		Modality:  doc.Modality,
		Content:   content,
		Source:    doc.Source,
		Position:  position,
		Embedding: vector,
		CreatedAt: time.Now().UTC(),
	}

	return withRetry(ctx, p.retry, p.logger, "insert chunk", func() error {
		return p.store.Insert(ctx, chunk)
	})
}
