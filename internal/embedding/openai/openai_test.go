package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragapi/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_EMBED_KEY", "sk-test")

	c, err := NewClient(Config{BaseURL: srv.URL + "/", APIKeyEnv: "TEST_EMBED_KEY", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY_MISSING", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_KEY_MISSING"})
	assert.ErrorContains(t, err, "TEST_EMBED_KEY_MISSING")
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)

		// Out of order on purpose: the client must honour the index field.
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0,2],"index":1},{"embedding":[1,0],"index":0}]}`))
	})

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 2}}, vecs)
	assert.Equal(t, "openai/text-embedding-3-small", c.Name())
}

func TestEmbedModelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"The model does not exist","code":"model_not_found"}}`))
	})

	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	assert.ErrorContains(t, err, "does not exist")
}

func TestEmbedServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrModelNotFound)
	assert.Contains(t, err.Error(), "upstream exploded")
}
