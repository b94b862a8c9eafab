package llm

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

// Config carries everything the Gemini adapter needs. The API key arrives
// through configuration; this package never reads the environment.
type Config struct {
	APIKey              string
	EmbeddingModel      string // text embeddings
	ImageEmbeddingModel string
	ChatModel           string
	TextDimensions      int
	ImageDimensions     int
}

// GeminiClient implements rag.Embedder and rag.Generator on top of the
// Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	cfg    Config
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing Gemini API key")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: c, cfg: cfg}, nil
}

func (g *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil, rag.ErrEmptyContent
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.cfg.EmbeddingModel,
		genai.Text(clean),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.cfg.TextDimensions)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingService, err)
	}
	return firstEmbedding(resp, g.cfg.TextDimensions)
}

// EmbedImage embeds the image behind a local path or file URI. Remote
// references are the ingest tooling's job to fetch first.
func (g *GeminiClient) EmbedImage(ctx context.Context, ref string) ([]float32, error) {
	if ref == "" {
		return nil, rag.ErrEmptyContent
	}

	data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", ref, err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{
			InlineData: &genai.Blob{MIMEType: imageMIME(ref), Data: data},
		}},
	}}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.cfg.ImageEmbeddingModel,
		contents,
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.cfg.ImageDimensions)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingService, err)
	}
	return firstEmbedding(resp, g.cfg.ImageDimensions)
}

func (g *GeminiClient) Generate(ctx context.Context, prompt rag.ComposedPrompt, params rag.GenerationParams) (string, rag.Usage, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.cfg.ChatModel,
		genai.Text(prompt.User),
		g.generationConfig(prompt, params),
	)
	if err != nil {
		return "", rag.Usage{}, fmt.Errorf("%w: %v", rag.ErrGenerationService, err)
	}
	if resp == nil {
		return "", rag.Usage{}, fmt.Errorf("%w: empty response", rag.ErrGenerationService)
	}

	txt := strings.TrimSpace(resp.Text())
	if txt == "" {
		return "", rag.Usage{}, fmt.Errorf("%w: model returned empty text", rag.ErrGenerationService)
	}
	return txt, usageFrom(resp), nil
}

// GenerateStream yields text fragments as the model produces them. Breaking
// out of the loop ends the iteration, which closes the underlying stream.
func (g *GeminiClient) GenerateStream(ctx context.Context, prompt rag.ComposedPrompt, params rag.GenerationParams) iter.Seq2[string, error] {
	cfg := g.generationConfig(prompt, params)

	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(
			ctx, g.cfg.ChatModel, genai.Text(prompt.User), cfg,
		) {
			if err != nil {
				yield("", fmt.Errorf("%w: %v", rag.ErrGenerationService, err))
				return
			}
			frag := resp.Text()
			if frag == "" {
				continue
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

func (g *GeminiClient) generationConfig(prompt rag.ComposedPrompt, params rag.GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.Text(prompt.System)[0],
	}
	if params.Temperature != nil {
		cfg.Temperature = params.Temperature
	}
	if params.TopP != nil {
		cfg.TopP = params.TopP
	}
	if params.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = params.MaxOutputTokens
	}
	return cfg
}

// -------- helpers --------

func firstEmbedding(resp *genai.EmbedContentResponse, wantDim int) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", rag.ErrEmbeddingService)
	}
	values := resp.Embeddings[0].Values
	if len(values) != wantDim {
		return nil, fmt.Errorf("%w: unexpected embedding size %d (expected %d)",
			rag.ErrEmbeddingService, len(values), wantDim)
	}
	out := make([]float32, wantDim)
	copy(out, values)
	return out, nil
}

func usageFrom(resp *genai.GenerateContentResponse) rag.Usage {
	if resp.UsageMetadata == nil {
		return rag.Usage{}
	}
	return rag.Usage{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
}

func imageMIME(ref string) string {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func normalizeWhitespace(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			if !space {
				b.WriteRune(' ')
				space = true
			}
		} else {
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

var _ rag.Embedder = (*GeminiClient)(nil)
var _ rag.Generator = (*GeminiClient)(nil)
