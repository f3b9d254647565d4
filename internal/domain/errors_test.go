package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with operation",
			err:  NewError(KindNotFound, "delete", "Document with ID 'x' not found", nil),
			want: "delete: Document with ID 'x' not found",
		},
		{
			name: "without operation",
			err:  NewError(KindInternal, "", "boom", nil),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, KindUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	classified := NewError(KindUnavailable, "add", "down", cause)
	wrapped := fmt.Errorf("handler: %w", classified)

	assert.Equal(t, KindUnavailable, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, KindInternal, KindOf(nil))
	assert.ErrorIs(t, wrapped, cause)
}
