// Package ollama adapts the Ollama HTTP API to the domain Embedder and
// Generator ports.
package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/ollama/ollama/api"

	"ragapi/internal/domain"
)

// NewAPIClient dials host, a bare host:port with no scheme.
func NewAPIClient(host string, timeout time.Duration) *api.Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	base := &url.URL{Scheme: "http", Host: host}
	return api.NewClient(base, &http.Client{Timeout: timeout})
}

// mapError turns a missing-model reply into domain.ErrModelNotFound while
// keeping the original error in the chain. Non-streaming calls surface a
// 404 api.StatusError; streaming calls such as Generate only carry the
// server's `model "x" not found` message.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrModelNotFound, err)
	}
	if modelNotFound.MatchString(err.Error()) {
		return fmt.Errorf("%w: %w", domain.ErrModelNotFound, err)
	}
	return err
}

var modelNotFound = regexp.MustCompile(`model ["']?[^"'\s]*["']? not found`)
