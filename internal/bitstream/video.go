// Package bitstream demultiplexes FLV-style RTMP audio/video tag payloads:
// it extracts AVCDecoderConfigurationRecord / AudioSpecificConfig codec
// configuration and reconstructs per-frame DTS/PTS timing. This is C1 in
// the design (§4.1).
package bitstream

import (
	"encoding/binary"
	"fmt"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

const avcCodecID = 7

// VideoPacketType is byte 1 of an RTMP video tag payload.
type VideoPacketType uint8

const (
	VideoSequenceHeader VideoPacketType = 0x00
	VideoNALU           VideoPacketType = 0x01
	VideoEndOfSequence  VideoPacketType = 0x02
)

// VideoTagHeader is the parsed byte0/byte1/compositionTime envelope shared
// by all three video tag dispositions.
type VideoTagHeader struct {
	KeyFrame        bool
	PacketType      VideoPacketType
	CompositionTime int32 // signed ms; only meaningful for VideoNALU
}

// ParseVideoTagHeader parses bytes 0..4 of an RTMP video tag payload and
// returns the header plus the remaining bytes (the payload starting at
// byte 5). Any codec other than AVC (codec id 7) is reported as an error
// so the caller can drop the tag with a warning (§4.1).
func ParseVideoTagHeader(data []byte) (VideoTagHeader, []byte, error) {
	if len(data) < 5 {
		return VideoTagHeader{}, nil, playermodels.NewError(playermodels.UnsupportedCodec,
			fmt.Sprintf("video tag too short: %d bytes", len(data)), nil)
	}

	frameType := (data[0] >> 4) & 0x0F
	codecID := data[0] & 0x0F
	if codecID != avcCodecID {
		return VideoTagHeader{}, nil, playermodels.NewError(playermodels.UnsupportedCodec,
			fmt.Sprintf("unsupported video codec id %d", codecID), nil)
	}

	hdr := VideoTagHeader{
		KeyFrame:   frameType == 1,
		PacketType: VideoPacketType(data[1]),
	}
	hdr.CompositionTime = signExtend24(uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4]))

	return hdr, data[5:], nil
}

// signExtend24 sign-extends a 24-bit big-endian value (bit 23 is the sign
// bit) to a signed 32-bit value.
func signExtend24(v uint32) int32 {
	v &= 0x00FFFFFF
	if v&0x00800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// ParseAVCDecoderConfigurationRecord parses the AVCDecoderConfigurationRecord
// carried by an AVC sequence header tag. Only the first SPS and first PPS
// are retained; additional entries are tolerated but ignored.
func ParseAVCDecoderConfigurationRecord(data []byte) (playermodels.VideoConfig, error) {
	if len(data) < 6 {
		return playermodels.VideoConfig{}, malformedVideoConfig("AVCDecoderConfigurationRecord too short: %d bytes", len(data))
	}

	// data[0] configurationVersion, [1] profile, [2] compatibility, [3] level.
	lengthSizeMinusOne := data[4] & 0x03
	naluLength := int(lengthSizeMinusOne) + 1
	if !validNALULengthSize(naluLength) {
		return playermodels.VideoConfig{}, malformedVideoConfig("invalid NALU length size %d", naluLength)
	}

	numSPS := int(data[5] & 0x1F)
	offset := 6

	var sps []byte
	for i := 0; i < numSPS; i++ {
		if offset+2 > len(data) {
			return playermodels.VideoConfig{}, malformedVideoConfig("truncated SPS length at index %d", i)
		}
		size := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+size > len(data) {
			return playermodels.VideoConfig{}, malformedVideoConfig("truncated SPS data at index %d", i)
		}
		if i == 0 {
			sps = append([]byte(nil), data[offset:offset+size]...)
		}
		offset += size
	}

	if offset >= len(data) {
		return playermodels.VideoConfig{}, malformedVideoConfig("truncated record: missing PPS count")
	}
	numPPS := int(data[offset])
	offset++

	var pps []byte
	for i := 0; i < numPPS; i++ {
		if offset+2 > len(data) {
			return playermodels.VideoConfig{}, malformedVideoConfig("truncated PPS length at index %d", i)
		}
		size := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+size > len(data) {
			return playermodels.VideoConfig{}, malformedVideoConfig("truncated PPS data at index %d", i)
		}
		if i == 0 {
			pps = append([]byte(nil), data[offset:offset+size]...)
		}
		offset += size
	}

	if len(sps) < 4 {
		return playermodels.VideoConfig{}, malformedVideoConfig("SPS too short: %d bytes", len(sps))
	}
	if len(pps) < 1 {
		return playermodels.VideoConfig{}, malformedVideoConfig("PPS too short: %d bytes", len(pps))
	}

	return playermodels.VideoConfig{SPS: sps, PPS: pps, NALULengthSize: naluLength}, nil
}

// malformedVideoConfig wraps an AVCDecoderConfigurationRecord parse failure
// as a playermodels.MalformedConfig error so callers can discriminate it
// from an UnsupportedCodec tag-header failure via errors.As (§7).
func malformedVideoConfig(format string, args ...interface{}) error {
	return playermodels.NewError(playermodels.MalformedConfig, fmt.Sprintf(format, args...), nil)
}

// VideoUnitTiming computes dts_ms/pts_ms for a video unit per the
// timestamp-rebasing rule: dts is the RTMP timestamp rebased to the first
// tag of the session, pts adds the signed composition time. A negative
// composition time that would make pts negative clamps pts to dts (§4.1
// edge case).
func VideoUnitTiming(rtmpTimestampMs, firstVideoTs int64, compositionTimeMs int32) (dtsMs, ptsMs int64) {
	dtsMs = rtmpTimestampMs - firstVideoTs
	ptsMs = dtsMs + int64(compositionTimeMs)
	if ptsMs < 0 {
		ptsMs = dtsMs
	}
	return dtsMs, ptsMs
}

// NewVideoUnit builds a VideoUnit from a parsed header, its AVCC payload,
// and the RTMP timing context.
func NewVideoUnit(hdr VideoTagHeader, avccPayload []byte, rtmpTimestampMs, firstVideoTs int64) playermodels.VideoUnit {
	dts, pts := VideoUnitTiming(rtmpTimestampMs, firstVideoTs, hdr.CompositionTime)
	return playermodels.VideoUnit{
		AVCCPayload: avccPayload,
		KeyFrame:    hdr.KeyFrame,
		DTSMs:       dts,
		PTSMs:       pts,
	}
}
