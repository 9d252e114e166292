package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidrtmp/rtmpplayer/pkg/audiodecode"
	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func TestAudioSubmitConfigIsIdempotent(t *testing.T) {
	a := NewAudio(audiodecode.New)
	cfg := playermodels.AudioConfig{AudioObjectType: 2, SampleRateHz: 44100, Channels: 2}

	rebuilt, err := a.SubmitConfig(cfg)
	require.NoError(t, err)
	require.True(t, rebuilt)

	rebuilt, err = a.SubmitConfig(cfg)
	require.NoError(t, err)
	require.False(t, rebuilt)
}

func TestAudioDecodeBeforeConfigFails(t *testing.T) {
	a := NewAudio(audiodecode.New)
	_, err := a.Decode(playermodels.AudioUnit{AACRaw: []byte{0x01}})
	require.Error(t, err)
}

func TestAudioDecodeAfterConfig(t *testing.T) {
	a := NewAudio(audiodecode.New)
	cfg := playermodels.AudioConfig{AudioObjectType: 2, SampleRateHz: 44100, Channels: 2}
	_, err := a.SubmitConfig(cfg)
	require.NoError(t, err)

	sample, err := a.Decode(playermodels.AudioUnit{AACRaw: []byte{0x01, 0x02}, PTSMs: 42})
	require.NoError(t, err)
	require.Equal(t, int64(42), sample.PTSMs)
}
