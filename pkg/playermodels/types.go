// Package playermodels defines the value types that cross component
// boundaries in the RTMP player core: tag payloads, parsed codec
// configuration, coded units, and decoded samples. All types here are
// immutable by convention — no method mutates a receiver's fields after
// construction.
package playermodels

import "fmt"

// TagKind distinguishes an RTMP message's media type.
type TagKind int

const (
	TagVideo TagKind = iota
	TagAudio
)

func (k TagKind) String() string {
	if k == TagVideo {
		return "video"
	}
	return "audio"
}

// TagPayload is one RTMP audio or video message as received from the
// transport, before any demuxing.
type TagPayload struct {
	Kind            TagKind
	Bytes           []byte
	RTMPTimestampMs int64
}

// VideoConfig is parsed from the AVC sequence header tag. Only the first
// SPS and first PPS are retained even if the record carries more.
type VideoConfig struct {
	SPS             []byte
	PPS             []byte
	NALULengthSize  int // 1, 2, or 4
}

// Equal reports whether two configs carry the same SPS/PPS/length size.
// Used to detect re-announcement of an identical sequence header (§8
// invariant 4, "config idempotence").
func (c VideoConfig) Equal(o VideoConfig) bool {
	return c.NALULengthSize == o.NALULengthSize &&
		bytesEqual(c.SPS, o.SPS) &&
		bytesEqual(c.PPS, o.PPS)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AudioConfig is parsed from the AAC sequence header's AudioSpecificConfig.
type AudioConfig struct {
	AudioObjectType uint8
	SampleRateHz    int
	Channels        int
}

// VideoUnit is a coded frame ready for decode.
type VideoUnit struct {
	AVCCPayload []byte // length-prefixed NAL units
	KeyFrame    bool
	DTSMs       int64
	PTSMs       int64
}

// AudioUnit is a coded AAC access unit (no ADTS header). AAC-LC units are
// fixed at 1024 samples.
type AudioUnit struct {
	AACRaw []byte
	PTSMs  int64
}

// MediaKind distinguishes what a DecodedSample carries.
type MediaKind int

const (
	MediaVideoFrame MediaKind = iota
	MediaAudioPCM
)

// FormatDescriptor describes the layout of a decoded sample's payload.
type FormatDescriptor struct {
	// Video
	Width, Height int
	// Audio
	SampleRateHz int
	Channels     int
	BitsPerSample int
}

// DecodedSample is the output envelope handed to the renderer.
type DecodedSample struct {
	Media      MediaKind
	Pixels     []byte // valid when Media == MediaVideoFrame (bi-planar 4:2:0)
	PCM        []byte // valid when Media == MediaAudioPCM (interleaved S16LE)
	Format     FormatDescriptor
	PTSMs      int64
	DTSMs      int64  // video only; zero-value has no meaning for audio
	HasDTS     bool
	DurationMs int64
	HasDuration bool
}

// SessionState is the playback lifecycle state (§3).
type SessionState struct {
	variant SessionVariant
	cause   string // only meaningful when variant == StateError
}

// SessionVariant is the discriminant of a SessionState.
type SessionVariant int

const (
	StateIdle SessionVariant = iota
	StateConnecting
	StatePlaying
	StatePaused
	StateStopped
	StateError
)

func Idle() SessionState       { return SessionState{variant: StateIdle} }
func Connecting() SessionState { return SessionState{variant: StateConnecting} }
func Playing() SessionState    { return SessionState{variant: StatePlaying} }
func Paused() SessionState     { return SessionState{variant: StatePaused} }
func Stopped() SessionState    { return SessionState{variant: StateStopped} }
func Error(cause string) SessionState {
	return SessionState{variant: StateError, cause: cause}
}

// Variant returns the underlying state kind, for switch statements.
func (s SessionState) Variant() SessionVariant { return s.variant }

// Cause returns the diagnostic string of an error state ("" otherwise).
func (s SessionState) Cause() string { return s.cause }

// Equal compares by variant; for the error variant, also by diagnostic
// string (§3: "two [error] values are equal iff their diagnostic strings
// match").
func (s SessionState) Equal(o SessionState) bool {
	if s.variant != o.variant {
		return false
	}
	if s.variant == StateError {
		return s.cause == o.cause
	}
	return true
}

func (s SessionState) String() string {
	switch s.variant {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return fmt.Sprintf("error(%s)", s.cause)
	default:
		return "unknown"
	}
}

// Stats is the performance snapshot published by the monitor (C5).
type Stats struct {
	FPS           float64
	TotalFrames   uint64
	DroppedFrames uint64
	DurationS     float64
}
