package pcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStickyStatus_FirstFailureWins(t *testing.T) {
	var s stickyStatus
	s.set(Lifted)
	require.Equal(t, Lifted, s.status())

	s.set(Unsupported)
	require.Equal(t, Unsupported, s.status())

	// A later, different failure must not overwrite the first one.
	s.set(Invalid)
	require.Equal(t, Unsupported, s.status())
}

func TestStickyStatus_SetErrorIsSticky(t *testing.T) {
	var s stickyStatus
	cause := errors.New("missing input varnode")
	s.setError(cause)
	require.Equal(t, LifterError, s.status())
	require.Equal(t, cause, s.Err())

	s.set(Unsupported)
	require.Equal(t, LifterError, s.status())
}

func TestLiftStatus_String(t *testing.T) {
	require.Equal(t, "Lifted", Lifted.String())
	require.Equal(t, "Unsupported", Unsupported.String())
}
