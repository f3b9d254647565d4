package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragapi/internal/domain"
	"ragapi/internal/service"
)

// RAGPort is the handler-facing subset of the RAG service.
type RAGPort interface {
	Add(ctx context.Context, text string, metadata map[string]any) (string, error)
	Query(ctx context.Context, req service.QueryRequest) (*service.QueryResult, error)
	Delete(ctx context.Context, id string) error
}

type addRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type queryRequest struct {
	Q             string `json:"q"`
	NResults      int    `json:"n_results"`
	IncludeScores bool   `json:"include_scores"`
	UseBestOnly   bool   `json:"use_best_only"`
}

// StatusResponse is the body of health, add and delete responses.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Handler serves the RAG endpoints on top of a RAGPort.
type Handler struct {
	svc RAGPort
	log *slog.Logger
}

// NewHandler creates a Handler. A nil logger falls back to slog.Default.
func NewHandler(svc RAGPort, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok", Message: "RAG API is running"})
}

func (h *Handler) add(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	id, err := h.svc.Add(c.Request.Context(), req.Text, req.Metadata)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, StatusResponse{
		Status:  "success",
		Message: "Content added to knowledge base",
		ID:      id,
	})
}

func (h *Handler) query(c *gin.Context) {
	req := queryRequest{NResults: 1, UseBestOnly: true}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	res, err := h.svc.Query(c.Request.Context(), service.QueryRequest{
		Query:         req.Q,
		NResults:      req.NResults,
		IncludeScores: req.IncludeScores,
		UseBestOnly:   req.UseBestOnly,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("doc_id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		Status:  "success",
		Message: "Document '" + id + "' deleted successfully",
		ID:      id,
	})
}

func (h *Handler) badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body: " + err.Error()})
}

// fail writes a classified error. Unclassified errors become 500s.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	detail := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		detail = de.Detail
	}
	level := slog.LevelDebug
	if kind == domain.KindInternal {
		level = slog.LevelError
	}
	h.log.Log(c.Request.Context(), level, "Request failed",
		"path", c.FullPath(), "kind", kind.String(), "error", err)
	c.JSON(kind.HTTPStatus(), ErrorResponse{Detail: detail})
}
