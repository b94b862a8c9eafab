package rag

import "time"

// Modality tells which embedding space a piece of content lives in.
// Text and images are embedded by different models with different
// dimensionalities, so every chunk and query carries one.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Chunk is one unit of ingested content. Once stored it is never mutated;
// re-ingesting the same source position replaces the whole record.
type Chunk struct {
	ID        string    `json:"id"`
	Modality  Modality  `json:"modality"`
	Content   string    `json:"content"` // raw text, or a path/URI for images
	Source    string    `json:"source"`
	Position  int       `json:"position"` // sequential index within the source
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is raw input handed to the ingestion pipeline. Text documents are
// split into chunks; an image document becomes a single chunk holding its ref.
type Document struct {
	Source   string   `json:"source"`
	Modality Modality `json:"modality"`
	Content  string   `json:"content"`
}

// GenerationParams are passed through to the model provider. Nil pointer
// fields keep the provider's defaults.
type GenerationParams struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens int32    `json:"maxOutputTokens,omitempty"`
}

// Query is a single question. Transient, never persisted.
type Query struct {
	Modality Modality         `json:"modality"`
	Content  string           `json:"content"`
	TopK     int              `json:"topK,omitempty"` // <=0 falls back to the configured default
	Params   GenerationParams `json:"params,omitempty"`
}

// ScoredChunk pairs a retrieved chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

// RetrievalResult is ordered by descending similarity, ties broken by
// chunk ID ascending so results are deterministic across backends.
type RetrievalResult []ScoredChunk

// IDs returns the chunk identifiers in result order.
func (r RetrievalResult) IDs() []string {
	ids := make([]string, len(r))
	for i, m := range r {
		ids[i] = m.Chunk.ID
	}
	return ids
}

// ComposedPrompt is the structured input handed to the generator.
// Sources lists exactly the chunk IDs whose content made it into the prompt;
// Dropped lists the IDs cut by the context budget.
type ComposedPrompt struct {
	System      string   `json:"system"`
	User        string   `json:"user"`
	Sources     []string `json:"sources"`
	Dropped     []string `json:"dropped,omitempty"`
	UsedContext bool     `json:"usedContext"`
}

// Usage carries token counts when the provider reports them.
type Usage struct {
	InputTokens  int32 `json:"inputTokens,omitempty"`
	OutputTokens int32 `json:"outputTokens,omitempty"`
}

// Answer is the final output returned to the caller.
type Answer struct {
	Text        string        `json:"text"`
	Sources     []string      `json:"sources"`
	UsedContext bool          `json:"usedContext"`
	Elapsed     time.Duration `json:"elapsed"`
	Usage       Usage         `json:"usage"`
}

// ChunkFailure records why one chunk of a batch could not be ingested.
type ChunkFailure struct {
	ChunkID  string `json:"chunkId"`
	Source   string `json:"source"`
	Position int    `json:"position"`
	Reason   string `json:"reason"`
}

// IngestReport is the partial-success result of one ingestion batch.
// The pipeline is not transactional across chunks.
type IngestReport struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []ChunkFailure `json:"failures,omitempty"`
}
