package http

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

type Handler struct {
	svc      *rag.Service
	pipeline *rag.Pipeline
	timeout  time.Duration
}

func NewHandler(svc *rag.Service, pipeline *rag.Pipeline, timeout time.Duration) *Handler {
	return &Handler{svc: svc, pipeline: pipeline, timeout: timeout}
}

type AskRequest struct {
	Question        string   `json:"question"`
	Modality        string   `json:"modality,omitempty"` // defaults to text
	TopK            int      `json:"topK,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens int32    `json:"maxOutputTokens,omitempty"`
}

func (r AskRequest) query() rag.Query {
	modality := rag.Modality(r.Modality)
	if modality == "" {
		modality = rag.ModalityText
	}
	return rag.Query{
		Modality: modality,
		Content:  r.Question,
		TopK:     r.TopK,
		Params: rag.GenerationParams{
			Temperature:     r.Temperature,
			TopP:            r.TopP,
			MaxOutputTokens: r.MaxOutputTokens,
		},
	}
}

type AskResponse struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	UsedContext bool     `json:"usedContext"`
	ElapsedMs   int64    `json:"elapsedMs"`
}

type IngestRequest struct {
	Documents []rag.Document `json:"documents"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	answer, err := h.svc.Ask(ctx, req.query())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, AskResponse{
		Answer:      answer.Text,
		Sources:     answer.Sources,
		UsedContext: answer.UsedContext,
		ElapsedMs:   answer.Elapsed.Milliseconds(),
	})
}

// AskStream answers with incrementally flushed text fragments. Retrieval
// metadata goes into response headers since the body is the raw answer.
func (h *Handler) AskStream(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stream, err := h.svc.AskStream(ctx, req.query())
	if err != nil {
		writeError(w, err)
		return
	}

	next, stop := iter.Pull2(stream.Fragments)
	defer stop()

	// Pull the first fragment before committing to a 200: a generation that
	// fails outright must surface as an error response, not an empty body.
	frag, fragErr, ok := next()
	if ok && fragErr != nil {
		writeError(w, fragErr)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if sources, marshalErr := json.Marshal(stream.Sources); marshalErr == nil {
		w.Header().Set("X-Askdocs-Sources", string(sources))
	}
	w.Header().Set("X-Askdocs-Used-Context", boolHeader(stream.UsedContext))

	flusher, _ := w.(http.Flusher)
	for ok {
		if _, writeErr := w.Write([]byte(frag)); writeErr != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		frag, fragErr, ok = next()
		if fragErr != nil {
			// Headers are gone; the best we can do mid-stream is stop.
			return
		}
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		http.Error(w, "documents is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.pipeline.Ingest(ctx, req.Documents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

type errorResponse struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable"`
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Retryable: rag.Transient(err)}

	var stageErr *rag.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
		resp.Retryable = stageErr.Retryable()
	}

	status := http.StatusInternalServerError
	switch {
	case resp.Retryable:
		status = http.StatusServiceUnavailable
	case errors.Is(err, rag.ErrEmptyContent),
		errors.Is(err, rag.ErrUnsupportedModality),
		errors.Is(err, rag.ErrInvalidChunkingConfig):
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func boolHeader(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
