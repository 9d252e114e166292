package decoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
	"github.com/rapidrtmp/rtmpplayer/pkg/videodecode"
)

func testConfig() playermodels.VideoConfig {
	return playermodels.VideoConfig{
		SPS:            []byte{0x67, 0x42, 0x00, 0x1E},
		PPS:            []byte{0x68, 0xCE, 0x06, 0xE2},
		NALULengthSize: 4,
	}
}

// Invariant 4: config idempotence.
func TestSubmitConfigIsIdempotent(t *testing.T) {
	v := NewVideo(videodecode.New)
	cfg := testConfig()

	rebuilt, err := v.SubmitConfig(cfg)
	require.NoError(t, err)
	require.True(t, rebuilt)

	rebuilt, err = v.SubmitConfig(cfg)
	require.NoError(t, err)
	require.False(t, rebuilt, "resubmitting an identical config must be a no-op")
}

func TestSubmitConfigRebuildsOnChange(t *testing.T) {
	v := NewVideo(videodecode.New)
	cfg1 := testConfig()
	cfg2 := testConfig()
	cfg2.SPS = []byte{0x67, 0x42, 0x00, 0x1F}

	_, err := v.SubmitConfig(cfg1)
	require.NoError(t, err)

	rebuilt, err := v.SubmitConfig(cfg2)
	require.NoError(t, err)
	require.True(t, rebuilt)
}

func TestDecodeBeforeConfigFails(t *testing.T) {
	v := NewVideo(videodecode.New)
	_, err := v.Decode(playermodels.VideoUnit{AVCCPayload: []byte{0x00, 0x00, 0x00, 0x01, 0xAA}})
	require.Error(t, err)
}

func TestProbeConfigExtractsEmbeddedParameterSets(t *testing.T) {
	v := NewVideo(videodecode.New)

	// length(4)=SPS(4 bytes type 0x67=NAL type 7), length(4)=PPS(1 byte type 0x68=NAL type 8)
	avcc := []byte{
		0x00, 0x00, 0x00, 0x04, 0x67, 0x42, 0x00, 0x1E,
		0x00, 0x00, 0x00, 0x01, 0x68,
	}
	cfg, err := v.ProbeConfig(avcc, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0x67, 0x42, 0x00, 0x1E}, cfg.SPS)
	require.Equal(t, []byte{0x68}, cfg.PPS)
}

func TestProbeConfigFailsWithoutParameterSets(t *testing.T) {
	v := NewVideo(videodecode.New)
	avcc := []byte{0x00, 0x00, 0x00, 0x01, 0xAA}
	_, err := v.ProbeConfig(avcc, 4)
	require.Error(t, err)
	require.True(t, errors.Is(err, playermodels.KindSentinel(playermodels.MalformedConfig)),
		"a failed cold-start probe must classify as MalformedConfig (§7)")
}
