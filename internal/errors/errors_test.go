package errors_test

import (
	"fmt"
	"testing"

	"github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "context"))

	err := errors.Wrapf(errors.ErrConflict, "[Insert] email %s", "a@b.c")
	require.ErrorIs(t, err, errors.ErrConflict)
	require.Equal(t, "[Insert] email a@b.c: conflict", err.Error())
}

func TestIs(t *testing.T) {
	require.True(t, errors.Is(fmt.Errorf("resolve: %w", errors.ErrExpiredToken), errors.ErrExpiredToken))
	require.False(t, errors.Is(errors.ErrInvalidToken, errors.ErrExpiredToken))
	require.False(t, errors.Is(nil, errors.ErrNotFound))
}
