package playermodels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlayerErrorIsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError(DecodeFailed, "video frame dropped", cause)

	require.True(t, errors.Is(err, KindSentinel(DecodeFailed)))
	require.False(t, errors.Is(err, KindSentinel(TransportFailed)))
}

func TestPlayerErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError(MalformedConfig, "bad sps", cause)

	require.Equal(t, cause, errors.Unwrap(err))
}

func TestPlayerErrorMessageFormat(t *testing.T) {
	err := NewError(InvalidState, "play() invalid from state playing", nil)
	require.Contains(t, err.Error(), "InvalidState")
	require.Contains(t, err.Error(), "play() invalid from state playing")
}
