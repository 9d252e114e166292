// Package metrics exposes C5's performance monitor through Prometheus, so
// a player embedded in a host process can be scraped the same way the
// player's in-process Stats snapshot is polled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

// Metrics holds all Prometheus metrics for one player process.
type Metrics struct {
	// Session lifecycle
	SessionState      *prometheus.GaugeVec // one gauge per state, 1 if current
	ReconnectAttempts prometheus.Counter

	// Frame/sample metrics
	FramesReceived *prometheus.CounterVec // label: type (video/audio)
	FramesDropped  *prometheus.CounterVec // label: reason
	KeyFrames      prometheus.Counter
	FrameSize      *prometheus.HistogramVec

	// Decoder health
	DecoderInitFailures *prometheus.CounterVec // label: kind (video/audio)
	DecodeFailures      *prometheus.CounterVec // label: kind

	// Performance monitor mirror (C5)
	FPS           prometheus.Gauge
	TotalFrames   prometheus.Gauge
	DroppedFrames prometheus.Gauge
	DurationS     prometheus.Gauge

	// Transport
	RTMPErrors prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		SessionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtmpplayer_session_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtmpplayer_reconnect_attempts_total",
			Help: "Total number of reconnect attempts",
		}),

		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtmpplayer_frames_received_total",
			Help: "Total number of coded tags received",
		}, []string{"type"}),
		FramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtmpplayer_frames_dropped_total",
			Help: "Total number of frames dropped",
		}, []string{"reason"}),
		KeyFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtmpplayer_keyframes_total",
			Help: "Total number of video keyframes received",
		}),
		FrameSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtmpplayer_frame_size_bytes",
			Help:    "Size of coded tags in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12), // 64B to ~256KB
		}, []string{"type"}),

		DecoderInitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtmpplayer_decoder_init_failures_total",
			Help: "Total number of decoder construction failures",
		}, []string{"kind"}),
		DecodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtmpplayer_decode_failures_total",
			Help: "Total number of per-unit decode failures",
		}, []string{"kind"}),

		FPS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtmpplayer_fps",
			Help: "Instantaneous decoded frames per second",
		}),
		TotalFrames: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtmpplayer_total_frames",
			Help: "Total frames decoded this session",
		}),
		DroppedFrames: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtmpplayer_dropped_frames",
			Help: "Total frames dropped this session",
		}),
		DurationS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtmpplayer_duration_seconds",
			Help: "Elapsed wall time since the monitor started",
		}),

		RTMPErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtmpplayer_rtmp_errors_total",
			Help: "Total number of transport errors observed",
		}),
	}
}

// RecordState sets the session-state gauge vector so exactly one state
// label reads 1.
func (m *Metrics) RecordState(s playermodels.SessionState) {
	for _, label := range sessionStateLabels {
		value := 0.0
		if label == stateLabel(s) {
			value = 1.0
		}
		m.SessionState.WithLabelValues(label).Set(value)
	}
}

var sessionStateLabels = []string{"idle", "connecting", "playing", "paused", "stopped", "error"}

func stateLabel(s playermodels.SessionState) string {
	switch s.Variant() {
	case playermodels.StateIdle:
		return "idle"
	case playermodels.StateConnecting:
		return "connecting"
	case playermodels.StatePlaying:
		return "playing"
	case playermodels.StatePaused:
		return "paused"
	case playermodels.StateStopped:
		return "stopped"
	default:
		return "error"
	}
}

// RecordReconnectAttempt records one reconnect attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordTagReceived records one coded tag and its size.
func (m *Metrics) RecordTagReceived(kind string, size int) {
	m.FramesReceived.WithLabelValues(kind).Inc()
	m.FrameSize.WithLabelValues(kind).Observe(float64(size))
}

// RecordKeyFrame records a keyframe.
func (m *Metrics) RecordKeyFrame() {
	m.KeyFrames.Inc()
}

// RecordFrameDropped records a dropped frame with its reason.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordDecoderInitFailure records a DecoderInitFailed event for the
// given media kind ("video" or "audio").
func (m *Metrics) RecordDecoderInitFailure(kind string) {
	m.DecoderInitFailures.WithLabelValues(kind).Inc()
}

// RecordDecodeFailure records a DecodeFailed event for the given media
// kind.
func (m *Metrics) RecordDecodeFailure(kind string) {
	m.DecodeFailures.WithLabelValues(kind).Inc()
}

// RecordRTMPError records a transport error.
func (m *Metrics) RecordRTMPError() {
	m.RTMPErrors.Inc()
}

// RecordStats mirrors a perfmon.Monitor snapshot into the Prometheus
// gauges.
func (m *Metrics) RecordStats(s playermodels.Stats) {
	m.FPS.Set(s.FPS)
	m.TotalFrames.Set(float64(s.TotalFrames))
	m.DroppedFrames.Set(float64(s.DroppedFrames))
	m.DurationS.Set(s.DurationS)
}
