package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

// Qdrant stores chunks in one Qdrant collection per modality. It is the
// alternate backend to Postgres, selected by configuration.
type Qdrant struct {
	client *qdrant.Client

	mu      sync.RWMutex
	schemas map[rag.Modality]rag.CollectionSchema
}

func NewQdrant(host string, port int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrStoreUnavailable, err)
	}
	return &Qdrant{
		client:  client,
		schemas: make(map[rag.Modality]rag.CollectionSchema),
	}, nil
}

func (s *Qdrant) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the modality's collection if missing and registers
// the schema for dimensionality checks.
func (s *Qdrant) EnsureCollection(ctx context.Context, schema rag.CollectionSchema) error {
	if schema.Dimensions <= 0 {
		return fmt.Errorf("%w: collection %q declares %d dimensions",
			rag.ErrSchemaMismatch, schema.Name, schema.Dimensions)
	}
	distance, err := metricDistance(schema.Metric)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, schema.Name)
	if err != nil {
		return storeErr(err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: schema.Name,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(schema.Dimensions),
						Distance: distance,
					},
				},
			},
		}); err != nil {
			return storeErr(err)
		}
	}

	s.mu.Lock()
	s.schemas[schema.Modality] = schema
	s.mu.Unlock()
	return nil
}

// Insert upserts by chunk ID; Qdrant replaces points with the same ID.
func (s *Qdrant) Insert(ctx context.Context, c rag.Chunk) error {
	schema, err := s.schemaFor(c.Modality)
	if err != nil {
		return err
	}
	if len(c.Embedding) != schema.Dimensions {
		return fmt.Errorf("%w: chunk %q has %d dimensions, collection %q expects %d",
			rag.ErrSchemaMismatch, c.ID, len(c.Embedding), schema.Name, schema.Dimensions)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(c.ID),
		Vectors: qdrant.NewVectors(c.Embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"modality":   string(c.Modality),
			"content":    c.Content,
			"source":     c.Source,
			"position":   int64(c.Position),
			"created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
		}),
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: schema.Name,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return storeErr(err)
	}
	return nil
}

// Search queries the modality's collection and normalizes the ordering to
// descending similarity with ID-ascending tie-breaks.
func (s *Qdrant) Search(ctx context.Context, vector []float32, k int, modality rag.Modality) (rag.RetrievalResult, error) {
	schema, err := s.schemaFor(modality)
	if err != nil {
		return nil, err
	}
	if len(vector) != schema.Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection %q expects %d",
			rag.ErrSchemaMismatch, len(vector), schema.Name, schema.Dimensions)
	}
	if k <= 0 {
		return rag.RetrievalResult{}, nil
	}

	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: schema.Name,
		Limit:          &limit,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, storeErr(err)
	}

	matches := make(rag.RetrievalResult, 0, len(points))
	for _, p := range points {
		matches = append(matches, rag.ScoredChunk{
			Chunk:      chunkFromPoint(p, modality),
			Similarity: similarityFromScore(schema.Metric, p.Score),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	return matches, nil
}

func (s *Qdrant) schemaFor(modality rag.Modality) (rag.CollectionSchema, error) {
	s.mu.RLock()
	schema, ok := s.schemas[modality]
	s.mu.RUnlock()
	if !ok {
		return rag.CollectionSchema{}, fmt.Errorf("%w: no collection configured for modality %q",
			rag.ErrSchemaMismatch, modality)
	}
	return schema, nil
}

func chunkFromPoint(p *qdrant.ScoredPoint, modality rag.Modality) rag.Chunk {
	c := rag.Chunk{Modality: modality}

	if p.Id != nil {
		switch id := p.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			c.ID = id.Uuid
		case *qdrant.PointId_Num:
			c.ID = fmt.Sprintf("%d", id.Num)
		}
	}

	for key, v := range p.Payload {
		switch key {
		case "content":
			c.Content = v.GetStringValue()
		case "source":
			c.Source = v.GetStringValue()
		case "position":
			c.Position = int(v.GetIntegerValue())
		case "created_at":
			if ts, err := time.Parse(time.RFC3339Nano, v.GetStringValue()); err == nil {
				c.CreatedAt = ts
			}
		}
	}
	return c
}

// similarityFromScore normalizes a Qdrant score so larger always means more
// similar. Cosine and dot scores already are similarities; a euclid score is
// the distance, where lower is better.
func similarityFromScore(m rag.Metric, score float32) float64 {
	if m == rag.MetricEuclidean {
		return -float64(score)
	}
	return float64(score)
}

func metricDistance(m rag.Metric) (qdrant.Distance, error) {
	switch m {
	case rag.MetricCosine:
		return qdrant.Distance_Cosine, nil
	case rag.MetricDotProduct:
		return qdrant.Distance_Dot, nil
	case rag.MetricEuclidean:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unknown similarity metric %q", m)
	}
}

var _ rag.Store = (*Qdrant)(nil)
