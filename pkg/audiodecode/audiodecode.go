// Package audiodecode defines the capability trait an AAC-LC → PCM
// converter must satisfy (C3, §4.3), plus a platform-selected default
// implementation.
package audiodecode

import "github.com/rapidrtmp/rtmpplayer/pkg/playermodels"

// Decoder converts one coded AudioUnit into interleaved signed 16-bit PCM.
// Not safe for concurrent use.
type Decoder interface {
	Decode(unit playermodels.AudioUnit) (*playermodels.DecodedSample, error)
	Close() error
}

// Factory builds a Decoder from a parsed AudioConfig. No decoder-specific
// magic cookie is required — the config fields fully describe the input
// format (§4.3 "Initialization").
type Factory func(cfg playermodels.AudioConfig) (Decoder, error)

// New is the platform-selected factory, resolved at link time by build
// tag (see decoder_darwin.go / decoder_software.go).
var New Factory = newPlatformDecoder

// FramesPerUnit is the fixed AAC-LC access unit size (§3).
const FramesPerUnit = 1024

// DurationMs computes the playback duration of one 1024-sample unit at
// the given sample rate (§4.3).
func DurationMs(sampleRateHz int) int64 {
	return int64(FramesPerUnit) * 1000 / int64(sampleRateHz)
}

// BufferSize is the exact output buffer size for one unit (§4.3 "Buffer
// sizing"): 1024 frames * channels * 2 bytes (S16).
func BufferSize(channels int) int {
	return FramesPerUnit * channels * 2
}
