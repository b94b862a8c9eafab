package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers are expected to branch on.
// Service adapters wrap provider errors with one of these so the rest of the
// code can use errors.Is without knowing the backend.
var (
	ErrEmptyContent          = errors.New("content is empty")
	ErrUnsupportedModality   = errors.New("unsupported modality")
	ErrInvalidChunkingConfig = errors.New("invalid chunking config")
	ErrEmbeddingService      = errors.New("embedding service failure")
	ErrStoreUnavailable      = errors.New("vector store unavailable")
	ErrSchemaMismatch        = errors.New("embedding dimensionality does not match collection schema")
	ErrGenerationService     = errors.New("generation service failure")
	ErrGenerationTimeout     = errors.New("no fragment received within the configured timeout")
	ErrStreamConsumed        = errors.New("fragment stream already consumed")
)

// Transient reports whether err is worth retrying with bounded backoff.
// Schema mismatches and caller errors are deliberately excluded.
func Transient(err error) bool {
	return errors.Is(err, ErrEmbeddingService) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrGenerationService) ||
		errors.Is(err, ErrGenerationTimeout)
}

// Stage identifies the orchestration step a request failed in.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageCompose  Stage = "compose"
	StageGenerate Stage = "generate"
)

// StageError tags a failure with the stage it happened in, so callers can
// tell a broken embedding call from a broken generation call.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Retryable reports whether the wrapped failure is transient.
func (e *StageError) Retryable() bool { return Transient(e.Err) }
