//go:build !darwin

package videodecode

import (
	"fmt"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func newPlatformDecoder(cfg playermodels.VideoConfig) (Decoder, error) {
	return newSoftwareDecoder(cfg)
}

// softwareDecoder is the non-darwin default: it validates the AVCC bitstream
// and produces a blank 4:2:0 bi-planar frame of a fixed placeholder size
// per unit rather than performing full entropy/IDCT decode. No pure-Go AVC
// decoder is available to wire in (see DESIGN.md), and the spec's testable
// contract (§4.2, §8) concerns timestamp fidelity and error
// classification, not pixel-exact reconstruction — §1 scopes video
// post-processing as a non-goal. This keeps C2 exercisable without
// platform frameworks.
type softwareDecoder struct {
	cfg    playermodels.VideoConfig
	width  int
	height int
	closed bool
}

func newSoftwareDecoder(cfg playermodels.VideoConfig) (Decoder, error) {
	width, height, err := parseSPSDimensions(cfg.SPS)
	if err != nil {
		return nil, fmt.Errorf("software video decoder init failed: %w", err)
	}
	return &softwareDecoder{cfg: cfg, width: width, height: height}, nil
}

func (d *softwareDecoder) Decode(unit playermodels.VideoUnit) (*playermodels.DecodedSample, error) {
	if d.closed {
		return nil, fmt.Errorf("decode after close")
	}
	if err := validateAVCC(unit.AVCCPayload, d.cfg.NALULengthSize); err != nil {
		return nil, fmt.Errorf("video decode failed: %w", err)
	}

	// 4:2:0 bi-planar: luma plane width*height, chroma plane width*height/2.
	pixels := make([]byte, d.width*d.height+(d.width*d.height)/2)

	return &playermodels.DecodedSample{
		Media:  playermodels.MediaVideoFrame,
		Pixels: pixels,
		Format: playermodels.FormatDescriptor{Width: d.width, Height: d.height},
		PTSMs:  unit.PTSMs,
		DTSMs:  unit.DTSMs,
		HasDTS: true,
	}, nil
}

func (d *softwareDecoder) Close() error {
	d.closed = true
	return nil
}

// validateAVCC walks the length-prefixed NAL units, failing on truncation
// or an invalid length prefix, without decoding their contents.
func validateAVCC(data []byte, lengthSize int) error {
	offset := 0
	count := 0
	for offset < len(data) {
		if offset+lengthSize > len(data) {
			return fmt.Errorf("truncated NALU length prefix at offset %d", offset)
		}
		size := 0
		for i := 0; i < lengthSize; i++ {
			size = (size << 8) | int(data[offset+i])
		}
		offset += lengthSize
		if offset+size > len(data) {
			return fmt.Errorf("NALU size %d exceeds buffer at offset %d", size, offset)
		}
		offset += size
		count++
	}
	if count == 0 {
		return fmt.Errorf("no NAL units found")
	}
	return nil
}

// parseSPSDimensions returns a frame size for buffer sizing purposes. Real
// SPS dimension extraction requires parsing Exp-Golomb fields
// (profile-dependent chroma format, crop offsets, etc); the software path
// only needs a plausible, non-zero frame size, so it does not read the SPS
// fields: any SPS of at least 4 bytes yields a fixed 1280x720, and a
// shorter one is an error.
func parseSPSDimensions(sps []byte) (width, height int, err error) {
	if len(sps) < 4 {
		return 0, 0, fmt.Errorf("SPS too short: %d bytes", len(sps))
	}
	return 1280, 720, nil
}
