package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/internal/httpapi"
	"ragapi/internal/service"
	"ragapi/internal/vectorstore"
	"ragapi/internal/vectorstore/memory"
)

type constEmbedder struct{}

func (constEmbedder) Name() string { return "const" }

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type staticGenerator struct{}

func (staticGenerator) Generate(context.Context, string) (string, error) { return "42", nil }
func (staticGenerator) Model() string                                    { return "tinyllama" }
func (staticGenerator) Host() string                                     { return "localhost:11434" }
func (staticGenerator) Provider() string                                 { return "ollama" }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := vectorstore.NewCollection("docs", memory.NewStorage(), constEmbedder{})
	svc := service.NewRAGService(store, staticGenerator{}, service.Options{Logger: log})
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.NewHandler(svc, log)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAgainstServer(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	c := New(srv.URL+"/", WithTimeout(5*time.Second))

	require.NoError(t, c.Health(ctx))

	_, err := c.Query(ctx, "anything", QueryOptions{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	id, err := c.Add(ctx, "the answer", map[string]any{"source": "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	res, err := c.Query(ctx, "the answer", QueryOptions{NResults: 1, IncludeScores: true, UseBestOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Answer)
	assert.Equal(t, 1, res.ResultsCount)
	require.Len(t, res.Results, 1)
	assert.Equal(t, id, res.Results[0].ID)
	require.NotNil(t, res.Results[0].RelevanceScore)
	assert.Equal(t, 1.0, *res.Results[0].RelevanceScore)
	assert.Equal(t, "test", res.Results[0].Metadata["source"])

	require.NoError(t, c.Delete(ctx, id))
	err = c.Delete(ctx, id)
	assert.True(t, IsNotFound(err))
}

func TestClientErrorDetail(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	_, err := c.Add(context.Background(), "  ", nil)
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Add", apiErr.Op)
	assert.Contains(t, apiErr.Detail, "Text cannot be empty")
	assert.False(t, IsNotFound(err))
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, WithHTTPClient(srv.Client())).Health(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Detail)
}

func TestWithTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: 5 * time.Second}
	c := New("http://localhost:8000", WithHTTPClient(shared), WithTimeout(time.Second))

	assert.Equal(t, 5*time.Second, shared.Timeout)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	assert.NotSame(t, shared, c.httpClient)
}
