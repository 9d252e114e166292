package playermodels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVideoConfigEqual(t *testing.T) {
	a := VideoConfig{SPS: []byte{1, 2, 3, 4}, PPS: []byte{5}, NALULengthSize: 4}
	b := VideoConfig{SPS: []byte{1, 2, 3, 4}, PPS: []byte{5}, NALULengthSize: 4}
	c := VideoConfig{SPS: []byte{1, 2, 3, 9}, PPS: []byte{5}, NALULengthSize: 4}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestSessionStateEqual(t *testing.T) {
	require.True(t, Idle().Equal(Idle()))
	require.True(t, Error("boom").Equal(Error("boom")))
	require.False(t, Error("boom").Equal(Error("other")))
	require.False(t, Playing().Equal(Paused()))
}

func TestSessionStateString(t *testing.T) {
	require.Equal(t, "playing", Playing().String())
	require.Equal(t, "error(boom)", Error("boom").String())
}

func TestSessionStateVariantAccessors(t *testing.T) {
	s := Connecting()
	require.Equal(t, StateConnecting, s.Variant())
	require.Equal(t, "", s.Cause())
}
