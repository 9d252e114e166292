// Package transport is the boundary between the session state machine
// (C4, §4.4) and the RTMP wire protocol. It wraps github.com/yutopp/go-rtmp
// in client (Dial) mode, mirroring the teacher's internal/rtmp ConnHandler
// pattern but reacting to server-originated events instead of producing
// them.
package transport

import "context"

// Status mirrors the transport lifecycle values named in §6.
type Status int

const (
	StatusHandshakeStart Status = iota
	StatusHandshakeDone
	StatusConnect
	StatusPlayStart
	StatusFailed
	StatusDisconnected
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusHandshakeStart:
		return "handshake_start"
	case StatusHandshakeDone:
		return "handshake_done"
	case StatusConnect:
		return "connect"
	case StatusPlayStart:
		return "play_start"
	case StatusFailed:
		return "failed"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// StatusEvent carries a Status and, for StatusFailed, the underlying cause.
type StatusEvent struct {
	Status Status
	Cause  error
}

// Tag is one coded video or audio tag as delivered by the transport: the
// RTMP message payload as received, starting at the FLV tag-data header
// (video: frame type/codec id, AVC packet type, composition time; audio:
// sound format, AAC packet type), and its RTMP timestamp in milliseconds.
type Tag struct {
	Bytes       []byte
	TimestampMs int64
}

// MetaData is the subset of an onMetaData AMF0 object the session cares
// about, per §6 "on_video_config(width, height, data_rate)".
type MetaData struct {
	Width     float64
	Height    float64
	DataRate  float64
	FrameRate float64
}

// Statistics is a transport-level counter snapshot, independent of the
// decode-side perfmon.Monitor.
type Statistics struct {
	BytesReceived uint64
}

// Client is the transport session object C4 consumes, per §6: "play",
// "invalidate", and six event streams. Implementations keep emitting on
// the channels until Invalidate is called, which closes every channel
// exactly once; a dropped connection is reported as a status event and
// does not close them.
type Client interface {
	Play(ctx context.Context, url string) error
	Invalidate() error

	StatusCh() <-chan StatusEvent
	ErrorCh() <-chan error
	VideoCh() <-chan Tag
	AudioCh() <-chan Tag
	MetaDataCh() <-chan MetaData
	StatisticsCh() <-chan Statistics
}
