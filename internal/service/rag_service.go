package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ragapi/internal/domain"
	"ragapi/internal/metrics"
)

const (
	// MinResults and MaxResults bound n_results on a query.
	MinResults = 1
	MaxResults = 10

	promptTemplate = "Context:\n%s\n\nQuestion: %s\n\nAnswer clearly and concisely:"
)

// QueryRequest is a validated-on-entry retrieval request.
type QueryRequest struct {
	Query         string
	NResults      int
	IncludeScores bool
	UseBestOnly   bool
}

// ResultItem is one retrieved document. Scores are set only when requested.
type ResultItem struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	RelevanceScore *float64       `json:"relevance_score,omitempty"`
	Distance       *float64       `json:"distance,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// QueryResult is the generated answer. Results is nil unless scores were
// requested or all results were used as context.
type QueryResult struct {
	Answer       string       `json:"answer"`
	ResultsCount int          `json:"results_count"`
	Results      []ResultItem `json:"results,omitempty"`
}

// Options holds optional RAGService settings.
type Options struct {
	// StoragePath is quoted in connectivity errors on add.
	StoragePath string
	Logger      *slog.Logger
	// NewID generates document ids; defaults to UUIDv4.
	NewID func() string
}

// RAGService validates requests, calls the vector store and the generator in
// turn and classifies their failures. It holds no per-request state.
type RAGService struct {
	store       domain.VectorStore
	generator   domain.Generator
	storagePath string
	log         *slog.Logger
	newID       func() string
}

// NewRAGService wires store and generator. Zero Options fields fall back to
// slog.Default and random UUIDs.
func NewRAGService(store domain.VectorStore, generator domain.Generator, opts Options) *RAGService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &RAGService{
		store:       store,
		generator:   generator,
		storagePath: opts.StoragePath,
		log:         log,
		newID:       newID,
	}
}

// Add stores text under a fresh id and returns the id.
func (s *RAGService) Add(ctx context.Context, text string, metadata map[string]any) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", s.invalid("add", "Text cannot be empty. Please provide non-empty text content.")
	}

	id := s.newID()
	err := s.store.Add(ctx, []domain.Document{{ID: id, Text: text, Metadata: metadata}})
	if err != nil {
		metrics.StoreErrorsTotal.Add(1)
		s.log.Error("Failed to add document", "id", id, "error", err)
		switch {
		case isDimensionMismatch(err):
			return "", domain.NewError(domain.KindValidation, "add", fmt.Sprintf(
				"Invalid document format: %v. This may occur if the collection has existing documents with different embedding dimensions.",
				err), err)
		case storeUnavailable(err):
			return "", domain.NewError(domain.KindUnavailable, "add", fmt.Sprintf(
				"Database connection error: %v. Check if the vector store is accessible and the database path '%s' is correct.",
				err, s.storagePath), err)
		default:
			return "", domain.NewError(domain.KindInternal, "add", fmt.Sprintf("Failed to add content: %v", err), err)
		}
	}

	metrics.DocumentsAddedTotal.Add(1)
	s.log.Info("Added document", "id", id, "text_length", len(text))
	return id, nil
}

// Query retrieves the nearest documents to req.Query and asks the generator
// to answer from them.
func (s *RAGService) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, s.invalid("query", "Query cannot be empty. Please provide a question to search the knowledge base.")
	}
	if req.NResults < MinResults {
		return nil, s.invalid("query", "n_results must be at least 1")
	}
	if req.NResults > MaxResults {
		return nil, s.invalid("query", "n_results cannot exceed 10 for performance reasons")
	}
	metrics.QueriesTotal.Add(1)

	matches, err := s.store.Query(ctx, req.Query, req.NResults)
	if err != nil {
		return nil, s.queryStoreError(err)
	}

	if len(matches) == 0 {
		count, err := s.store.Count(ctx)
		if err != nil {
			return nil, s.queryStoreError(err)
		}
		if count == 0 {
			return nil, domain.NewError(domain.KindNotFound, "query",
				"No documents found in knowledge base. Add content using the /add endpoint first.", nil)
		}
		return nil, domain.NewError(domain.KindNotFound, "query", fmt.Sprintf(
			"No relevant context found for your query. The knowledge base has %d document(s), but none match your question. Try rephrasing your query or adding more relevant content.",
			count), nil)
	}

	items := make([]ResultItem, len(matches))
	for i, m := range matches {
		items[i] = ResultItem{ID: m.ID, Text: m.Text}
		if req.IncludeScores {
			score := relevance(m.Distance)
			dist := round4(m.Distance)
			items[i].RelevanceScore = &score
			items[i].Distance = &dist
		}
		if m.Metadata != nil {
			items[i].Metadata = m.Metadata
		}
	}

	answer, err := s.generator.Generate(ctx, BuildPrompt(BuildContext(items, req.UseBestOnly), req.Query))
	if err != nil {
		return nil, s.generationError(err)
	}

	res := &QueryResult{Answer: answer, ResultsCount: len(items)}
	if req.IncludeScores || !req.UseBestOnly {
		res.Results = items
	}
	s.log.Info("Answered query", "results", len(items), "best_only", req.UseBestOnly)
	return res, nil
}

// Delete removes a document by id. A failed existence probe does not block
// the delete; only a probe that succeeds and finds nothing yields not found.
func (s *RAGService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return s.invalid("delete", "Document ID cannot be empty")
	}

	docs, err := s.store.Get(ctx, []string{id})
	switch {
	case err != nil:
		s.log.Warn("Existence check failed, deleting anyway", "id", id, "error", err)
	case len(docs) == 0:
		return domain.NewError(domain.KindNotFound, "delete",
			fmt.Sprintf("Document with ID '%s' not found in the knowledge base.", id), nil)
	}

	if err := s.store.Delete(ctx, []string{id}); err != nil {
		metrics.StoreErrorsTotal.Add(1)
		s.log.Error("Failed to delete document", "id", id, "error", err)
		if storeUnavailable(err) {
			return domain.NewError(domain.KindUnavailable, "delete", fmt.Sprintf(
				"Database connection error: %v. Check if the vector store is accessible.", err), err)
		}
		return domain.NewError(domain.KindInternal, "delete", fmt.Sprintf("Failed to delete document: %v", err), err)
	}

	metrics.DocumentsDeletedTotal.Add(1)
	s.log.Info("Deleted document", "id", id)
	return nil
}

// BuildContext renders the retrieved texts handed to the generator.
func BuildContext(items []ResultItem, bestOnly bool) string {
	if len(items) == 0 {
		return ""
	}
	if bestOnly {
		return items[0].Text
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("[Result %d]: %s", i+1, it.Text)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt embeds context and question in the fixed answer template.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}

func (s *RAGService) invalid(op, detail string) error {
	metrics.ValidationErrorsTotal.Add(1)
	return domain.NewError(domain.KindValidation, op, detail, nil)
}

func (s *RAGService) queryStoreError(err error) error {
	metrics.StoreErrorsTotal.Add(1)
	s.log.Error("Vector store query failed", "error", err)
	if storeUnavailable(err) {
		return domain.NewError(domain.KindUnavailable, "query", fmt.Sprintf(
			"Database connection error: %v. Check if the vector store is accessible.", err), err)
	}
	return domain.NewError(domain.KindInternal, "query", fmt.Sprintf("Failed to process query: %v", err), err)
}

func (s *RAGService) generationError(err error) error {
	metrics.GenerationsFailedTotal.Add(1)
	s.log.Error("Generation failed", "model", s.generator.Model(), "error", err)
	model, host := s.generator.Model(), s.generator.Host()
	provider := s.generator.Provider()
	local := provider == "ollama"

	var kind domain.Kind
	var detail string
	switch {
	case generatorUnavailable(err) && local:
		kind, detail = domain.KindUnavailable, fmt.Sprintf(
			"Cannot connect to Ollama at %s. Ensure Ollama is running and accessible. Error: %v", host, err)
	case generatorUnavailable(err):
		kind, detail = domain.KindUnavailable, fmt.Sprintf(
			"Cannot connect to %s at %s. Check the base URL and API key. Error: %v", provider, host, err)
	case isModelNotFound(err) && local:
		kind, detail = domain.KindValidation, fmt.Sprintf(
			"Model '%s' not found in Ollama. Install it with: ollama pull %s", model, model)
	case isModelNotFound(err):
		kind, detail = domain.KindValidation, fmt.Sprintf(
			"Model '%s' not found at %s. Check the configured model name.", model, provider)
	case local:
		kind, detail = domain.KindInternal, fmt.Sprintf("Ollama generation failed: %v", err)
	default:
		kind, detail = domain.KindInternal, fmt.Sprintf("Generation via %s failed: %v", provider, err)
	}
	return domain.NewError(kind, "generate", detail, err)
}
