package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsPlainErrors(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "boom")
}

func TestCloneMatchesTemplate(t *testing.T) {
	cloned := Clone(ErrValidation, "date is required")
	assert.Equal(t, "date is required", cloned.Message)
	assert.True(t, stderrors.Is(cloned, ErrValidation))
	assert.False(t, stderrors.Is(cloned, ErrNotFound))

	wrapped := fmt.Errorf("outer: %w", cloned)
	assert.True(t, stderrors.Is(wrapped, ErrValidation))
	assert.Equal(t, "date is required", FromError(wrapped).Message)
}

func TestCacheMissIsComparable(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrCacheMiss)
	assert.True(t, stderrors.Is(err, ErrCacheMiss))
}
