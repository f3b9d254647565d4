package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"ragapi/internal/domain"
	"ragapi/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage implements vectorstore.Storage backed by Postgres + pgvector.
type Storage struct {
	db         *sql.DB
	collection string
	dimension  int
}

// NewStorage connects to Postgres (with pgvector) and ensures the table exists.
func NewStorage(ctx context.Context, dsn, collection string, dimension int) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	s, err := NewStorageFromDB(ctx, db, collection, dimension)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStorageFromDB reuses an existing *sql.DB.
func NewStorageFromDB(ctx context.Context, db *sql.DB, collection string, dimension int) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		dimension = 384
	}
	s := &Storage{db: db, collection: collection, dimension: dimension}
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureTables(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS rag_documents (
  collection  text NOT NULL,
  id          text NOT NULL,
  content     text NOT NULL,
  metadata    jsonb,
  embedding   vector(%d) NOT NULL,
  created_at  timestamptz NOT NULL DEFAULT now(),
  updated_at  timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS rag_documents_collection_idx ON rag_documents (collection);
`, s.dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure pgvector schema: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := vectorstore.CheckDimension(s.dimension, records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := `
INSERT INTO rag_documents (collection, id, content, metadata, embedding, updated_at)
 VALUES ($1, $2, $3, $4, $5::vector, $6)
 ON CONFLICT (collection, id) DO UPDATE SET
   content=EXCLUDED.content,
   metadata=EXCLUDED.metadata,
   embedding=EXCLUDED.embedding,
   updated_at=now();
`
	for _, r := range records {
		var meta any
		if len(r.Document.Metadata) > 0 {
			b, err := json.Marshal(r.Document.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			meta = string(b)
		}
		embLit, err := toVectorLiteral(r.Vector, s.dimension)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt,
			s.collection, r.Document.ID, r.Document.Text, meta, embLit, time.Now().UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search ranks by pgvector's L2 operator, squared to match the other backends.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	embLit, err := toVectorLiteral(vector, s.dimension)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, metadata, power(embedding <-> $2::vector, 2) AS distance
FROM rag_documents
WHERE collection = $1
ORDER BY embedding <-> $2::vector
LIMIT $3
`, s.collection, embLit, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			m    domain.Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Text, &meta, &m.Distance); err != nil {
			return nil, err
		}
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, metadata FROM rag_documents
WHERE collection = $1 AND id = ANY($2)
ORDER BY created_at
`, s.collection, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			d    domain.Document
			meta []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta); err != nil {
			return nil, err
		}
		if d.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rag_documents WHERE collection = $1 AND id = ANY($2)`, s.collection, pq.Array(ids))
	return err
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rag_documents WHERE collection = $1`, s.collection).Scan(&n)
	return n, err
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("%w: embedding length %d does not match dimension %d",
			domain.ErrDimensionMismatch, len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}
