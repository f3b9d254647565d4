package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"ragapi/internal/domain"
)

var _ domain.VectorStore = (*Collection)(nil)

// Collection gives a Storage backend text-level semantics: documents are
// embedded on the way in and queries are embedded before searching.
type Collection struct {
	name     string
	storage  Storage
	embedder domain.Embedder
}

// NewCollection binds storage and embedder under a collection name.
func NewCollection(name string, storage Storage, embedder domain.Embedder) *Collection {
	return &Collection{name: name, storage: storage, embedder: embedder}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) Add(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return errors.New("embedder returned wrong number of vectors")
	}
	records := make([]Record, len(docs))
	for i := range docs {
		records[i] = Record{Document: docs[i], Vector: vectors[i]}
	}
	if err := c.storage.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Query embeds text and returns the n nearest documents. An empty
// collection yields no matches without calling the embedder.
func (c *Collection) Query(ctx context.Context, text string, n int) ([]domain.Match, error) {
	total, err := c.storage.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	vectors, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedder returned no vector for query")
	}
	matches, err := c.storage.Search(ctx, vectors[0], n)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return matches, nil
}

func (c *Collection) Get(ctx context.Context, ids []string) ([]domain.Document, error) {
	return c.storage.Get(ctx, ids)
}

func (c *Collection) Delete(ctx context.Context, ids []string) error {
	return c.storage.Delete(ctx, ids)
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.storage.Count(ctx)
}

// Close releases the underlying storage.
func (c *Collection) Close() error {
	return c.storage.Close()
}
