package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	stock := New(InsufficientStock, "insufficient stock")
	wrapped := fmt.Errorf("reserve line 2: %w", stock)

	assert.Equal(t, InsufficientStock, Of(wrapped))
	assert.Equal(t, Internal, Of(errors.New("boom")))
	assert.Equal(t, Unknown, Of(nil))
	require.ErrorIs(t, wrapped, stock)
}

func TestOf_FirstKindWins(t *testing.T) {
	invalid := New(InvalidInput, "invalid input")
	quantity := New(InvalidQuantity, "quantity must be positive")
	err := fmt.Errorf("%w: %w", invalid, quantity)

	assert.Equal(t, InvalidInput, Of(err))
	require.ErrorIs(t, err, quantity)
}

func TestClassification(t *testing.T) {
	cases := []struct {
		kind        Kind
		correctable bool
		retryable   bool
	}{
		{InsufficientStock, true, false},
		{IllegalTransition, true, false},
		{DuplicateReview, true, false},
		{Conflict, true, true},
		{IdGenerationFailed, false, true},
		{Internal, false, true},
	}
	for _, tc := range cases {
		err := New(tc.kind, string(tc.kind))
		assert.Equal(t, tc.correctable, ClientCorrectable(err), tc.kind)
		assert.Equal(t, tc.retryable, Retryable(err), tc.kind)
	}
	assert.False(t, ClientCorrectable(errors.New("db down")))
}

func TestWithKind(t *testing.T) {
	remote := errors.New("activity error: insufficient stock")
	err := WithKind(InsufficientStock, remote)

	assert.Equal(t, InsufficientStock, Of(err))
	assert.True(t, ClientCorrectable(err))
	assert.Equal(t, remote.Error(), err.Error())
	require.ErrorIs(t, err, remote)
	assert.NoError(t, WithKind(Internal, nil))
}
