package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"ragapi/internal/domain"
	"ragapi/internal/vectorstore"
)

// DBFilename is the database file created inside the storage directory.
const DBFilename = "rag.sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   TEXT,
    embedding  BLOB NOT NULL,
    dimension  INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

var _ vectorstore.Storage = (*Storage)(nil)

// Storage keeps documents and their embeddings in a SQLite file and ranks
// them by brute-force squared L2 distance in Go.
type Storage struct {
	conn       *sql.DB
	collection string
}

// NewStorage opens (creating if needed) the database under dir.
func NewStorage(dir, collection string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, DBFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Storage{conn: conn, collection: collection}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.conn.Close()
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.conn.QueryRowContext(ctx,
		`SELECT dimension FROM documents WHERE collection = ? LIMIT 1`, s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension: %w", err)
	}
	return dim, nil
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if _, err := vectorstore.CheckDimension(dim, records); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, content, metadata, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			dimension = excluded.dimension
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := encodeMetadata(r.Document.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, s.collection, r.Document.ID, r.Document.Text, meta,
			vectorstore.EncodeVector(r.Vector), len(r.Vector)); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, content, metadata, embedding
		FROM documents
		WHERE collection = ?
		ORDER BY rowid
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			m           domain.Match
			meta        sql.NullString
			vectorBytes []byte
		)
		if err := rows.Scan(&m.ID, &m.Text, &meta, &vectorBytes); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stored, err := vectorstore.DecodeVector(vectorBytes)
		if err != nil {
			return nil, err
		}
		if m.Distance, err = vectorstore.SquaredL2(stored, vector); err != nil {
			return nil, err
		}
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return vectorstore.SortMatches(matches, topK), nil
}

func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, content, metadata FROM documents
		WHERE collection = ? AND id IN (%s) ORDER BY rowid`, placeholders(len(ids)))
	rows, err := s.conn.QueryContext(ctx, query, append([]any{s.collection}, toArgs(ids)...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			d    domain.Document
			meta sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
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
	query := fmt.Sprintf(`DELETE FROM documents WHERE collection = ? AND id IN (%s)`, placeholders(len(ids)))
	if _, err := s.conn.ExecContext(ctx, query, append([]any{s.collection}, toArgs(ids)...)...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}
