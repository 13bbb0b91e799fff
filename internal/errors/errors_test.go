package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/go-sso-server/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	errBadSecret := apperrors.New(apperrors.KindAuthentication, "bad secret")

	t.Run("wrapped sentinel keeps its kind", func(t *testing.T) {
		err := fmt.Errorf("[Test] outer: %w", errBadSecret)
		require.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
		require.True(t, apperrors.Is(err, errBadSecret))
	})

	t.Run("unclassified error is internal", func(t *testing.T) {
		require.Equal(t, apperrors.KindInternal, apperrors.KindOf(stderrors.New("boom")))
	})

	t.Run("nil has no kind", func(t *testing.T) {
		require.Equal(t, apperrors.Kind(""), apperrors.KindOf(nil))
	})
}

func TestIsSecurityFailure(t *testing.T) {
	require.True(t, apperrors.IsSecurityFailure(apperrors.New(apperrors.KindReplay, "replay")))
	require.True(t, apperrors.IsSecurityFailure(apperrors.New(apperrors.KindExpired, "expired")))
	require.False(t, apperrors.IsSecurityFailure(apperrors.New(apperrors.KindValidation, "missing field")))
	require.False(t, apperrors.IsSecurityFailure(apperrors.ErrStoreUnavailable))
}

func TestWrapf(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "context"))
	err := apperrors.Wrapf(apperrors.ErrNotFound, "session %s", "abc")
	require.EqualError(t, err, "session abc: not found")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
