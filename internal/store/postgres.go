package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/jpcarvalho/askdocs/internal/rag"
)

// Postgres stores chunks in one pgvector-backed table per modality.
// Safe for concurrent reads and writes; collection setup happens once at
// startup via EnsureCollection.
type Postgres struct {
	db *pgxpool.Pool

	mu      sync.RWMutex
	schemas map[rag.Modality]rag.CollectionSchema
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{
		db:      db,
		schemas: make(map[rag.Modality]rag.CollectionSchema),
	}
}

// EnsureCollection creates the modality's table and similarity index if they
// do not exist and registers the schema for later dimensionality checks.
func (s *Postgres) EnsureCollection(ctx context.Context, schema rag.CollectionSchema) error {
	if schema.Dimensions <= 0 {
		return fmt.Errorf("%w: collection %q declares %d dimensions",
			rag.ErrSchemaMismatch, schema.Name, schema.Dimensions)
	}
	opclass, _, err := metricSQL(schema.Metric)
	if err != nil {
		return err
	}

	table := pgx.Identifier{schema.Name}.Sanitize()

	if _, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return storeErr(err)
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         text PRIMARY KEY,
			modality   text NOT NULL,
			content    text NOT NULL,
			source     text NOT NULL,
			position   int  NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, table, schema.Dimensions)); err != nil {
		return storeErr(err)
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
		pgx.Identifier{schema.Name + "_embedding_idx"}.Sanitize(), table, opclass)); err != nil {
		return storeErr(err)
	}

	s.mu.Lock()
	s.schemas[schema.Modality] = schema
	s.mu.Unlock()
	return nil
}

// Insert upserts by chunk ID, replacing the whole record on conflict.
func (s *Postgres) Insert(ctx context.Context, c rag.Chunk) error {
	schema, err := s.schemaFor(c.Modality)
	if err != nil {
		return err
	}
	if len(c.Embedding) != schema.Dimensions {
		return fmt.Errorf("%w: chunk %q has %d dimensions, collection %q expects %d",
			rag.ErrSchemaMismatch, c.ID, len(c.Embedding), schema.Name, schema.Dimensions)
	}

	_, err = s.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, modality, content, source, position, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			modality   = EXCLUDED.modality,
			content    = EXCLUDED.content,
			source     = EXCLUDED.source,
			position   = EXCLUDED.position,
			embedding  = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at`,
		pgx.Identifier{schema.Name}.Sanitize()),
		c.ID, string(c.Modality), c.Content, c.Source, c.Position,
		pgvector.NewVector(c.Embedding), c.CreatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Search returns the k nearest chunks of the given modality, ordered by
// descending similarity with ties broken by ID for determinism.
func (s *Postgres) Search(ctx context.Context, vector []float32, k int, modality rag.Modality) (rag.RetrievalResult, error) {
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
	_, simExpr, err := metricSQL(schema.Metric)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id, modality, content, source, position, created_at, %s AS similarity
		FROM %s
		ORDER BY similarity DESC, id ASC
		LIMIT $2`, simExpr, pgx.Identifier{schema.Name}.Sanitize()),
		pgvector.NewVector(vector), k)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var matches rag.RetrievalResult
	for rows.Next() {
		var (
			c          rag.Chunk
			modalityS  string
			createdAt  time.Time
			similarity float64
		)
		if err := rows.Scan(&c.ID, &modalityS, &c.Content, &c.Source, &c.Position, &createdAt, &similarity); err != nil {
			return nil, storeErr(err)
		}
		c.Modality = rag.Modality(modalityS)
		c.CreatedAt = createdAt
		matches = append(matches, rag.ScoredChunk{Chunk: c, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return matches, nil
}

func (s *Postgres) schemaFor(modality rag.Modality) (rag.CollectionSchema, error) {
	s.mu.RLock()
	schema, ok := s.schemas[modality]
	s.mu.RUnlock()
	if !ok {
		return rag.CollectionSchema{}, fmt.Errorf("%w: no collection configured for modality %q",
			rag.ErrSchemaMismatch, modality)
	}
	return schema, nil
}

// metricSQL maps a metric to its pgvector index opclass and a similarity
// expression where larger is always more similar.
func metricSQL(m rag.Metric) (opclass, simExpr string, err error) {
	switch m {
	case rag.MetricCosine:
		return "vector_cosine_ops", "1 - (embedding <=> $1)", nil
	case rag.MetricDotProduct:
		// <#> is negative inner product.
		return "vector_ip_ops", "-(embedding <#> $1)", nil
	case rag.MetricEuclidean:
		return "vector_l2_ops", "-(embedding <-> $1)", nil
	default:
		return "", "", fmt.Errorf("unknown similarity metric %q", m)
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", rag.ErrStoreUnavailable, err)
}

var _ rag.Store = (*Postgres)(nil)
