//go:build !darwin

package videodecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func validConfig() playermodels.VideoConfig {
	return playermodels.VideoConfig{
		SPS:            []byte{0x67, 0x42, 0x00, 0x1E},
		PPS:            []byte{0x68, 0xCE, 0x06, 0xE2},
		NALULengthSize: 4,
	}
}

func TestSoftwareDecoderProducesCorrectlySizedFrame(t *testing.T) {
	dec, err := newSoftwareDecoder(validConfig())
	require.NoError(t, err)
	defer dec.Close()

	unit := playermodels.VideoUnit{
		AVCCPayload: []byte{0x00, 0x00, 0x00, 0x01, 0xAA},
		KeyFrame:    true,
		DTSMs:       100,
		PTSMs:       133,
	}
	sample, err := dec.Decode(unit)
	require.NoError(t, err)
	require.Equal(t, playermodels.MediaVideoFrame, sample.Media)
	require.Equal(t, int64(100), sample.DTSMs)
	require.Equal(t, int64(133), sample.PTSMs)
	require.True(t, sample.HasDTS)

	expectedSize := sample.Format.Width*sample.Format.Height + (sample.Format.Width*sample.Format.Height)/2
	require.Len(t, sample.Pixels, expectedSize)
}

func TestSoftwareDecoderPreservesInputPTSAndDTS(t *testing.T) {
	dec, err := newSoftwareDecoder(validConfig())
	require.NoError(t, err)
	defer dec.Close()

	unit := playermodels.VideoUnit{
		AVCCPayload: []byte{0x00, 0x00, 0x00, 0x01, 0xAA},
		DTSMs:       5000,
		PTSMs:       5033,
	}
	sample, err := dec.Decode(unit)
	require.NoError(t, err)
	require.Equal(t, unit.DTSMs, sample.DTSMs, "decoder must not substitute its own timestamp")
	require.Equal(t, unit.PTSMs, sample.PTSMs)
}

func TestSoftwareDecoderRejectsTruncatedNALU(t *testing.T) {
	dec, err := newSoftwareDecoder(validConfig())
	require.NoError(t, err)
	defer dec.Close()

	unit := playermodels.VideoUnit{AVCCPayload: []byte{0x00, 0x00, 0x00, 0xFF, 0xAA}}
	_, err = dec.Decode(unit)
	require.Error(t, err)
}

func TestSoftwareDecoderRejectsDecodeAfterClose(t *testing.T) {
	dec, err := newSoftwareDecoder(validConfig())
	require.NoError(t, err)
	require.NoError(t, dec.Close())

	_, err = dec.Decode(playermodels.VideoUnit{AVCCPayload: []byte{0x00, 0x00, 0x00, 0x01, 0xAA}})
	require.Error(t, err)
}
