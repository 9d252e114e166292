// Package decoder wraps the videodecode/audiodecode capability traits with
// the session-facing contract from §4.2/§4.3: lazy construction on the
// first config tag, cold-start recovery for keyframes seen before a
// sequence header, and fatal-vs-transient error classification.
package decoder

import (
	"fmt"

	"github.com/rapidrtmp/rtmpplayer/internal/bitstream"
	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
	"github.com/rapidrtmp/rtmpplayer/pkg/videodecode"
)

// Video wraps a videodecode.Decoder, building it lazily from the first
// AVC sequence header (or, failing that, a best-effort probe of the first
// keyframe) seen on the stream.
type Video struct {
	factory videodecode.Factory
	impl    videodecode.Decoder
	cfg     *playermodels.VideoConfig
}

// NewVideo constructs an (uninitialized) video decoder wrapper. The
// underlying platform decoder is built lazily on the first config tag.
func NewVideo(factory videodecode.Factory) *Video {
	if factory == nil {
		factory = videodecode.New
	}
	return &Video{factory: factory}
}

// SubmitConfig processes a parsed AVC sequence header (§8 invariant 4:
// "config idempotence" — submitting the same config twice is a no-op).
// Returns true if a new decoder was (re)built.
func (v *Video) SubmitConfig(cfg playermodels.VideoConfig) (bool, error) {
	if v.cfg != nil && v.cfg.Equal(cfg) {
		return false, nil
	}

	if v.impl != nil {
		_ = v.impl.Close()
		v.impl = nil
	}

	impl, err := v.factory(cfg)
	if err != nil {
		return false, playermodels.NewError(playermodels.DecoderInitFailed, "video decoder init failed", err)
	}

	v.impl = impl
	saved := cfg
	v.cfg = &saved
	return true, nil
}

// Ready reports whether a decoder has been built.
func (v *Video) Ready() bool { return v.impl != nil }

// ProbeConfig attempts the §4.2 "cold-start policy": when a keyframe
// arrives with no prior sequence header, treat its AVCC payload as a
// speculative AVCDecoderConfigurationRecord-less probe by trying to carve
// an SPS/PPS pair out of the frame's own NAL units. On failure the caller
// must drop the frame.
func (v *Video) ProbeConfig(avccPayload []byte, naluLengthSize int) (playermodels.VideoConfig, error) {
	sps, pps, err := extractParameterSets(avccPayload, naluLengthSize)
	if err != nil {
		return playermodels.VideoConfig{}, playermodels.NewError(playermodels.MalformedConfig, "cold-start probe failed", err)
	}
	return playermodels.VideoConfig{SPS: sps, PPS: pps, NALULengthSize: naluLengthSize}, nil
}

// extractParameterSets walks length-prefixed NAL units looking for an
// embedded SPS/PPS pair (some encoders in-band repeat parameter sets
// ahead of every IDR).
func extractParameterSets(data []byte, lengthSize int) (sps, pps []byte, err error) {
	offset := 0
	for offset < len(data) {
		if offset+lengthSize > len(data) {
			break
		}
		size := 0
		for i := 0; i < lengthSize; i++ {
			size = (size << 8) | int(data[offset+i])
		}
		offset += lengthSize
		if offset+size > len(data) || size == 0 {
			break
		}
		nal := data[offset : offset+size]
		switch nal[0] & 0x1F {
		case bitstream.NALUnitTypeSPS:
			sps = append([]byte(nil), nal...)
		case bitstream.NALUnitTypePPS:
			pps = append([]byte(nil), nal...)
		}
		offset += size
	}

	if len(sps) < 4 || len(pps) < 1 {
		return nil, nil, fmt.Errorf("no SPS/PPS found in keyframe")
	}
	return sps, pps, nil
}

// Decode submits one coded unit. A per-frame decode error is always
// non-fatal per §4.2 — the caller is expected to count it as a dropped
// frame and continue, never to transition session state.
func (v *Video) Decode(unit playermodels.VideoUnit) (*playermodels.DecodedSample, error) {
	if v.impl == nil {
		return nil, fmt.Errorf("video decoder not initialized")
	}
	sample, err := v.impl.Decode(unit)
	if err != nil {
		return nil, playermodels.NewError(playermodels.DecodeFailed, "video frame dropped", err)
	}
	return sample, nil
}

// Close releases the underlying decompression session, if any.
func (v *Video) Close() error {
	if v.impl == nil {
		return nil
	}
	err := v.impl.Close()
	v.impl = nil
	v.cfg = nil
	return err
}
