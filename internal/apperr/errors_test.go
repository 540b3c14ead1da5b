package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", Engine("exit status 2", nil))

	assert.Equal(t, KindEngine, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.True(t, Is(wrapped, KindEngine))
	assert.False(t, Is(nil, KindEngine))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("unsupported format: %s", "a.txt"), http.StatusBadRequest},
		{TooLarge(10), http.StatusRequestEntityTooLarge},
		{Engine("boom", nil), http.StatusInternalServerError},
		{EngineTimeout("deadline", nil), http.StatusInternalServerError},
		{Storage("disk full", nil), http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestDetailAndUnwrap(t *testing.T) {
	cause := errors.New("no space left on device")
	err := Storage("persist upload", cause)

	assert.Equal(t, "persist upload", Detail(err))
	assert.Equal(t, "internal error", Detail(cause))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[storage]")
}
