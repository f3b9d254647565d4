package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragapi/internal/domain"
	"ragapi/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// pointNamespace derives Qdrant point ids from document ids, which may be
// arbitrary strings.
var pointNamespace = uuid.MustParse("6f1c1f0e-8a55-4a3e-9d53-2b7f64c0e5a1")

// Storage is a minimal REST client to Qdrant.
// It uses Euclid distance and creates the collection on first write.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.Mutex
	dimension int
}

// Config points the storage at a Qdrant server and collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// apiError carries a non-2xx Qdrant response.
type apiError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.Method, e.URL, e.Status, e.Body)
}

// NewStorage creates a REST-backed storage. The collection is created on
// first write if it does not exist.
func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID maps a document id onto the UUID Qdrant stores it under.
func PointID(docID string) string {
	if _, err := uuid.Parse(docID); err == nil {
		return docID
	}
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// ensureCollection creates the collection for dimension if missing and
// otherwise checks that its vector size matches.
func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		var info struct {
			Result struct {
				Config struct {
					Params struct {
						Vectors struct {
							Size int `json:"size"`
						} `json:"vectors"`
					} `json:"params"`
				} `json:"config"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
		switch {
		case isStatus(err, http.StatusNotFound):
			body := map[string]any{
				"vectors": map[string]any{
					"size":     dimension,
					"distance": "Euclid",
				},
			}
			if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
				return err
			}
			s.dimension = dimension
		case err != nil:
			return err
		default:
			s.dimension = info.Result.Config.Params.Vectors.Size
		}
	}

	if s.dimension != dimension {
		return fmt.Errorf("%w: collection expecting embedding with dimension of %d, got %d",
			domain.ErrDimensionMismatch, s.dimension, dimension)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := vectorstore.CheckDimension(0, records)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload := map[string]any{
			"doc_id": r.Document.ID,
			"text":   r.Document.Text,
		}
		if len(r.Document.Metadata) > 0 {
			payload["metadata"] = r.Document.Metadata
		}
		points[i] = map[string]any{
			"id":      PointID(r.Document.ID),
			"vector":  r.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

type point struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (p point) document() domain.Document {
	doc := domain.Document{}
	if v, ok := p.Payload["doc_id"].(string); ok {
		doc.ID = v
	}
	if v, ok := p.Payload["text"].(string); ok {
		doc.Text = v
	}
	if v, ok := p.Payload["metadata"].(map[string]any); ok {
		doc.Metadata = v
	}
	return doc
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := r.document()
		// Euclid scores are plain L2; square them to match the other backends.
		matches = append(matches, domain.Match{
			ID:       doc.ID,
			Text:     doc.Text,
			Distance: r.Score * r.Score,
			Metadata: doc.Metadata,
		})
	}
	return matches, nil
}

func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = PointID(id)
	}
	req := map[string]any{
		"ids":          pointIDs,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points"), req, &resp)
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(resp.Result))
	for _, r := range resp.Result {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = PointID(id)
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"),
		map[string]any{"points": pointIDs}, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if isStatus(err, http.StatusNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &apiError{Method: method, URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Body), "dimension") {
			return fmt.Errorf("%w: %w", domain.ErrDimensionMismatch, apiErr)
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
