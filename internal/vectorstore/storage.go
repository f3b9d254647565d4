package vectorstore

import (
	"context"

	"ragapi/internal/domain"
)

// Record is a document together with its embedding.
type Record struct {
	Document domain.Document
	Vector   []float32
}

// Storage persists vectors and supports similarity search. Implementations
// return domain.ErrDimensionMismatch (wrapped) when a vector does not fit the
// collection.
type Storage interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error)
	Get(ctx context.Context, ids []string) ([]domain.Document, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Close() error
}
