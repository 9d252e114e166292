// Package videodecode defines the capability trait a hardware-accelerated
// H.264 decoder must satisfy (C2, §4.2), plus a platform-selected default
// implementation (build-tag dispatched: VideoToolbox on darwin, a
// contract-preserving software fallback elsewhere).
package videodecode

import "github.com/rapidrtmp/rtmpplayer/pkg/playermodels"

// Decoder decodes one coded VideoUnit at a time. Implementations MUST
// preserve the input PTS and DTS exactly on the returned sample — never
// substitute a timestamp the underlying platform decoder reports (§4.2,
// §9 "PTS preservation vs. decoder-returned timestamp"). Decode is not
// safe for concurrent use; callers serialize submissions themselves to
// preserve output ordering (§4.2 "Concurrency").
type Decoder interface {
	// Decode submits one coded frame. A nil sample with a nil error means
	// the platform decoder consumed the unit but produced no displayable
	// frame yet (e.g. still filling a B-frame reorder window).
	Decode(unit playermodels.VideoUnit) (*playermodels.DecodedSample, error)

	// Close releases the underlying decompression session. Safe to call
	// more than once.
	Close() error
}

// Factory builds a Decoder from a parsed sequence header. It returns an
// error if the platform rejects the SPS/PPS pair (§4.2 "Initialization");
// internal/decoder wraps that error as DecoderInitFailed.
type Factory func(cfg playermodels.VideoConfig) (Decoder, error)

// New is the platform-selected factory, resolved at link time by build
// tag (see decoder_darwin.go / decoder_software.go).
var New Factory = newPlatformDecoder
