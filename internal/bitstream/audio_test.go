package bitstream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

// S4: audio config parse.
func TestParseAudioSpecificConfig_S4(t *testing.T) {
	payload := []byte{0xAF, 0x00, 0x12, 0x10}

	hdr, body, err := ParseAudioTagHeader(payload)
	require.NoError(t, err)
	require.Equal(t, AACSequenceHeader, hdr.PacketType)

	objectType, sampleRateHz, channels, err := ParseAudioSpecificConfig(body)
	require.NoError(t, err)
	require.Equal(t, uint8(2), objectType)
	require.Equal(t, 44100, sampleRateHz)
	require.Equal(t, 2, channels)
}

func TestParseAudioTagHeader_RejectsNonAACFormat(t *testing.T) {
	payload := []byte{0x2F, 0x00, 0x12, 0x10} // sound format 2, not AAC
	_, _, err := ParseAudioTagHeader(payload)
	require.Error(t, err)
	require.True(t, errors.Is(err, playermodels.KindSentinel(playermodels.UnsupportedCodec)),
		"tag byte 0 decode failures must classify as UnsupportedCodec (§7)")
}

func TestParseAudioSpecificConfig_RejectsReservedSampleRateIndex(t *testing.T) {
	// sample_rate_index = 13 (reserved): bits = objectType(5)=2, index(4)=13
	// byte0 = 00010 110, byte1 = 1xxxxxxx -> index = (0x02<<1)|(1) no, build carefully:
	// objectType=2 -> 00010, index=13=1101 -> byte0 = 00010_110 = 0x16, byte1 top bit = 1 (last index bit) -> 0x80
	body := []byte{0x16, 0x80}
	_, _, _, err := ParseAudioSpecificConfig(body)
	require.Error(t, err)
	require.True(t, errors.Is(err, playermodels.KindSentinel(playermodels.MalformedConfig)),
		"AudioSpecificConfig parse failures must classify as MalformedConfig (§7)")
}

func TestAudioUnitTiming(t *testing.T) {
	pts := AudioUnitTiming(2048, 2000)
	require.Equal(t, int64(48), pts)
}
