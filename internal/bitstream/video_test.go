package bitstream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func hexBytes(t *testing.T, words ...byte) []byte {
	t.Helper()
	return append([]byte(nil), words...)
}

// S1: video config parse.
func TestParseAVCDecoderConfigurationRecord_S1(t *testing.T) {
	payload := hexBytes(t,
		0x17, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x42, 0x00, 0x1E, 0xFF, 0xE1, 0x00, 0x08,
		0x67, 0x42, 0x00, 0x1E, 0x9A, 0x66, 0x02, 0x80,
		0x01, 0x00, 0x04,
		0x68, 0xCE, 0x06, 0xE2,
	)

	hdr, body, err := ParseVideoTagHeader(payload)
	require.NoError(t, err)
	require.True(t, hdr.KeyFrame)
	require.Equal(t, VideoSequenceHeader, hdr.PacketType)

	cfg, err := ParseAVCDecoderConfigurationRecord(body)
	require.NoError(t, err)
	require.Equal(t, []byte{0x67, 0x42, 0x00, 0x1E, 0x9A, 0x66, 0x02, 0x80}, cfg.SPS)
	require.Equal(t, []byte{0x68, 0xCE, 0x06, 0xE2}, cfg.PPS)
	require.Equal(t, 4, cfg.NALULengthSize)
}

// S2: video frame PTS with positive composition time.
func TestVideoUnitTiming_S2(t *testing.T) {
	// bytes 2..4 = 00 00 21 -> composition_time = 33
	ct := signExtend24(0x000021)
	require.Equal(t, int32(33), ct)

	dts, pts := VideoUnitTiming(1133, 1000, ct)
	require.Equal(t, int64(133), dts)
	require.Equal(t, int64(166), pts)
}

// S3: negative composition time, clamped per edge case.
func TestVideoUnitTiming_S3(t *testing.T) {
	ct := signExtend24(0xFFFFED)
	require.Equal(t, int32(-19), ct)

	dts, pts := VideoUnitTiming(1100, 1000, ct)
	require.Equal(t, int64(100), dts)
	require.Equal(t, int64(81), pts)
}

func TestVideoUnitTiming_ClampsNegativePTS(t *testing.T) {
	// composition_time so negative it would drive pts below zero.
	dts, pts := VideoUnitTiming(1000, 1000, -500)
	require.Equal(t, int64(0), dts)
	require.Equal(t, int64(0), pts, "pts must clamp to dts, never go negative")
}

func TestParseVideoTagHeader_RejectsNonAVCCodec(t *testing.T) {
	payload := []byte{0x12, 0x00, 0x00, 0x00, 0x00, 0xAA}
	_, _, err := ParseVideoTagHeader(payload)
	require.Error(t, err)
	require.True(t, errors.Is(err, playermodels.KindSentinel(playermodels.UnsupportedCodec)),
		"tag byte 0 decode failures must classify as UnsupportedCodec (§7)")
}

func TestParseAVCDecoderConfigurationRecord_RejectsShortSPS(t *testing.T) {
	// numSPS=1, SPS length=2 (too short, invariant requires >= 4)
	body := []byte{0x01, 0x42, 0x00, 0x1E, 0xFF, 0xE1, 0x00, 0x02, 0xAA, 0xBB, 0x00}
	_, err := ParseAVCDecoderConfigurationRecord(body)
	require.Error(t, err)
	require.True(t, errors.Is(err, playermodels.KindSentinel(playermodels.MalformedConfig)),
		"SPS/PPS record failures must classify as MalformedConfig (§7)")
}

func TestParseAVCDecoderConfigurationRecord_KeepsOnlyFirstSPSAndPPS(t *testing.T) {
	body := []byte{
		0x01, 0x42, 0x00, 0x1E, 0xFF,
		0xE2, // numSPS = 2
		0x00, 0x04, 0x67, 0x42, 0x00, 0x1E, // first SPS
		0x00, 0x04, 0x67, 0x42, 0x00, 0x1F, // second SPS, ignored
		0x02, // numPPS = 2
		0x00, 0x01, 0x68,
		0x00, 0x01, 0x69,
	}
	cfg, err := ParseAVCDecoderConfigurationRecord(body)
	require.NoError(t, err)
	require.Equal(t, []byte{0x67, 0x42, 0x00, 0x1E}, cfg.SPS)
	require.Equal(t, []byte{0x68}, cfg.PPS)
}
