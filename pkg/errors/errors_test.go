package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brewing"), http.StatusTeapot},
		{"invalid query", fmt.Errorf("parsing: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"unsupported operator", &UnsupportedError{Operator: "#SUM", Model: "indri"}, http.StatusUnprocessableEntity},
		{"field mismatch", fmt.Errorf("syn: %w", ErrFieldMismatch), http.StatusUnprocessableEntity},
		{"index unavailable", ErrIndexUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestUnsupportedErrorIs(t *testing.T) {
	err := fmt.Errorf("evaluating: %w", &UnsupportedError{Operator: "#OR", Model: "bm25"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Contains(t, err.Error(), "#OR")
}
