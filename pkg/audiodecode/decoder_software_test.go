//go:build !darwin

package audiodecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func TestSoftwareDecoderProducesContractualBufferSize(t *testing.T) {
	cfg := playermodels.AudioConfig{AudioObjectType: 2, SampleRateHz: 44100, Channels: 2}
	dec, err := newSoftwareDecoder(cfg)
	require.NoError(t, err)
	defer dec.Close()

	unit := playermodels.AudioUnit{AACRaw: []byte{0x01, 0x02, 0x03}, PTSMs: 48}
	sample, err := dec.Decode(unit)
	require.NoError(t, err)
	require.Equal(t, playermodels.MediaAudioPCM, sample.Media)
	require.Len(t, sample.PCM, BufferSize(cfg.Channels))
	require.Equal(t, int64(48), sample.PTSMs)
	require.True(t, sample.HasDuration)

	wantDuration := int64(1024 * 1000 / cfg.SampleRateHz)
	require.Equal(t, wantDuration, sample.DurationMs)
}

func TestSoftwareDecoderRejectsInvalidSampleRate(t *testing.T) {
	_, err := newSoftwareDecoder(playermodels.AudioConfig{SampleRateHz: 0, Channels: 2})
	require.Error(t, err)
}

func TestSoftwareDecoderRejectsInvalidChannelCount(t *testing.T) {
	_, err := newSoftwareDecoder(playermodels.AudioConfig{SampleRateHz: 44100, Channels: 9})
	require.Error(t, err)
}

func TestSoftwareDecoderRejectsEmptyAccessUnit(t *testing.T) {
	dec, err := newSoftwareDecoder(playermodels.AudioConfig{SampleRateHz: 44100, Channels: 2})
	require.NoError(t, err)
	defer dec.Close()

	_, err = dec.Decode(playermodels.AudioUnit{})
	require.Error(t, err)
}
