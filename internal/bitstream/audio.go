package bitstream

import (
	"fmt"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

const aacSoundFormat = 0x0A

// AACPacketType is byte 1 of an RTMP audio tag payload.
type AACPacketType uint8

const (
	AACSequenceHeader AACPacketType = 0x00
	AACRaw            AACPacketType = 0x01
)

// AudioTagHeader is the parsed byte0/byte1 envelope of an AAC audio tag.
type AudioTagHeader struct {
	PacketType AACPacketType
}

// aacSampleRates maps the 4-bit sample-rate index of AudioSpecificConfig to
// Hz. Indices 13-15 are reserved. Identical to the standard ISO/IEC 14496-3
// table used throughout the AAC ecosystem.
var aacSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000,
	7350, 0, 0, 0,
}

// ParseAudioTagHeader parses bytes 0..1 of an RTMP audio tag payload.
// Sound formats other than AAC (0xA) are reported as an error so the
// caller can drop the tag.
func ParseAudioTagHeader(data []byte) (AudioTagHeader, []byte, error) {
	if len(data) < 2 {
		return AudioTagHeader{}, nil, playermodels.NewError(playermodels.UnsupportedCodec,
			fmt.Sprintf("audio tag too short: %d bytes", len(data)), nil)
	}

	soundFormat := (data[0] >> 4) & 0x0F
	if soundFormat != aacSoundFormat {
		return AudioTagHeader{}, nil, playermodels.NewError(playermodels.UnsupportedCodec,
			fmt.Sprintf("unsupported audio sound format %d", soundFormat), nil)
	}

	return AudioTagHeader{PacketType: AACPacketType(data[1])}, data[2:], nil
}

// ParseAudioSpecificConfig parses the two-byte AudioSpecificConfig carried
// by an AAC sequence header tag (§4.1 S4).
func ParseAudioSpecificConfig(data []byte) (AudioObjectType uint8, sampleRateHz, channels int, err error) {
	if len(data) < 2 {
		return 0, 0, 0, playermodels.NewError(playermodels.MalformedConfig,
			fmt.Sprintf("AudioSpecificConfig too short: %d bytes", len(data)), nil)
	}

	b0, b1 := data[0], data[1]

	objectType := (b0 >> 3) & 0x1F
	sampleRateIndex := ((b0 & 0x07) << 1) | (b1 >> 7)
	channelConfig := (b1 >> 3) & 0x0F

	hz := aacSampleRates[sampleRateIndex]
	if hz == 0 {
		return 0, 0, 0, playermodels.NewError(playermodels.MalformedConfig,
			fmt.Sprintf("reserved or invalid sample rate index %d", sampleRateIndex), nil)
	}

	return objectType, hz, int(channelConfig), nil
}

// AudioUnitTiming computes pts_ms for an audio unit: the RTMP timestamp
// rebased to the first audio tag of the session.
func AudioUnitTiming(rtmpTimestampMs, firstAudioTs int64) int64 {
	return rtmpTimestampMs - firstAudioTs
}
