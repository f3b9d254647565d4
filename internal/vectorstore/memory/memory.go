package memory

import (
	"context"
	"maps"
	"sync"

	"ragapi/internal/domain"
	"ragapi/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is a simple in-memory vector store using brute-force squared L2
// distance. Nothing survives a restart.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	records   map[string]vectorstore.Record
}

func NewStorage() *Storage {
	return &Storage{records: make(map[string]vectorstore.Record)}
}

func (s *Storage) Upsert(_ context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, err := vectorstore.CheckDimension(s.dimension, records)
	if err != nil {
		return err
	}
	s.dimension = dim
	for _, r := range records {
		if _, ok := s.records[r.Document.ID]; !ok {
			s.order = append(s.order, r.Document.ID)
		}
		s.records[r.Document.ID] = r
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	matches := make([]domain.Match, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		dist, err := vectorstore.SquaredL2(r.Vector, vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, domain.Match{
			ID:       r.Document.ID,
			Text:     r.Document.Text,
			Distance: dist,
			Metadata: maps.Clone(r.Document.Metadata),
		})
	}
	return vectorstore.SortMatches(matches, topK), nil
}

func (s *Storage) Get(_ context.Context, ids []string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			doc := r.Document
			doc.Metadata = maps.Clone(doc.Metadata)
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *Storage) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.records[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Storage) Close() error { return nil }
