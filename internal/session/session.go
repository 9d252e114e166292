// Package session implements the playback session (C4, §4.4): the state
// machine, reconnect policy, and dispatch loop that sits between
// internal/transport and the decoder/perfmon packages, fanning decoded
// samples out to a single renderer delegate.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rapidrtmp/rtmpplayer/internal/bitstream"
	"github.com/rapidrtmp/rtmpplayer/internal/decoder"
	"github.com/rapidrtmp/rtmpplayer/internal/metrics"
	"github.com/rapidrtmp/rtmpplayer/internal/perfmon"
	"github.com/rapidrtmp/rtmpplayer/internal/transport"
	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

const maxReconnectAttempts = 3

// Delegate is the renderer-facing sink named in §6, "Renderer (produced)".
// Methods are called from several goroutines: the per-stream dispatch
// goroutines, the goroutine that calls Play or Stop, and the reconnect
// timer. OnStateChange, OnVideoSample and OnAudioSample are called with the
// session's mutex held, so they never overlap one another; OnVideoConfig,
// OnStatistics and OnCleanup are called without it and can overlap any
// other method. A Delegate that shares state between methods needs its own
// locking.
type Delegate interface {
	OnStateChange(playermodels.SessionState)
	OnVideoSample(playermodels.DecodedSample)
	OnAudioSample(playermodels.DecodedSample)
	OnVideoConfig(width, height int, dataRateKbps float64)
	OnStatistics(playermodels.Stats)
	OnCleanup()
}

// ClientFactory builds a fresh transport.Client for each play/reconnect
// attempt — a session never reuses a torn-down client.
type ClientFactory func() transport.Client

// Session is the playback session. Exported methods (Play, Pause, Resume,
// Stop) are safe to call concurrently; they post onto the session's
// internal state under a mutex, matching §5's "external callers' methods
// post operations onto that [logical] context."
type Session struct {
	newClient ClientFactory
	delegate  Delegate
	monitor   *perfmon.Monitor
	rec       *metrics.Metrics // optional, nil disables Prometheus mirroring

	autoReconnect bool

	mu                 sync.Mutex
	state              playermodels.SessionState
	url                string
	reconnectAttempts  int
	reconnectTimer     *time.Timer
	generation         int64 // bumped on every play/reconnect/stop to fence stale goroutines
	client             transport.Client
	cancelDispatch     context.CancelFunc
	video              *decoder.Video
	audio              *decoder.Audio
	firstVideoTs       int64
	hasFirstVideoTs    bool
	firstAudioTs       int64
	hasFirstAudioTs    bool
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithMetrics attaches a Prometheus recorder; without it, metrics are
// simply not collected.
func WithMetrics(rec *metrics.Metrics) Option {
	return func(s *Session) { s.rec = rec }
}

// WithMonitor overrides the default per-session perfmon.Monitor, e.g. to
// share perfmon.Global() across sessions.
func WithMonitor(m *perfmon.Monitor) Option {
	return func(s *Session) { s.monitor = m }
}

// New constructs an idle Session. autoReconnect mirrors §6's only
// configuration knob and is used as given; its default of true comes from
// config.Load.
func New(newClient ClientFactory, delegate Delegate, autoReconnect bool, opts ...Option) *Session {
	s := &Session{
		newClient:     newClient,
		delegate:      delegate,
		autoReconnect: autoReconnect,
		state:         playermodels.Idle(),
		video:         decoder.NewVideo(nil),
		audio:         decoder.NewAudio(nil),
		monitor:       perfmon.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current session state.
func (s *Session) State() playermodels.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Play transitions idle/stopped/error → connecting and asks the transport
// to connect. Invalid from playing/paused/connecting.
func (s *Session) Play(ctx context.Context, url string) error {
	s.mu.Lock()
	switch s.state.Variant() {
	case playermodels.StatePlaying, playermodels.StatePaused, playermodels.StateConnecting:
		s.mu.Unlock()
		return playermodels.NewError(playermodels.InvalidState, fmt.Sprintf("play() invalid from state %s", s.state), nil)
	}
	s.stopPendingReconnectLocked()
	s.url = url
	s.reconnectAttempts = 0
	s.firstVideoTs, s.hasFirstVideoTs = 0, false
	s.firstAudioTs, s.hasFirstAudioTs = 0, false
	s.generation++
	gen := s.generation
	s.setStateLocked(playermodels.Connecting())
	s.mu.Unlock()

	s.monitor.Start()
	return s.connect(ctx, gen)
}

// connect builds a fresh client and dispatch loop for the given
// generation. Called both from Play and from the reconnect timer.
func (s *Session) connect(ctx context.Context, gen int64) error {
	client := s.newClient()

	dispatchCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if gen != s.generation {
		// Superseded by a stop() or a newer play() while we were building.
		s.mu.Unlock()
		cancel()
		_ = client.Invalidate()
		return nil
	}
	s.client = client
	s.cancelDispatch = cancel
	url := s.url
	s.mu.Unlock()

	s.startDispatchLoop(dispatchCtx, client, gen)

	if err := client.Play(ctx, url); err != nil {
		s.handleTransportError(gen, err)
		return err
	}
	return nil
}

// Pause and Resume toggle between playing and paused. Media tags received
// while paused are discarded by the dispatch loop (no buffering).
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Variant() == playermodels.StatePlaying {
		s.setStateLocked(playermodels.Paused())
	}
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Variant() == playermodels.StatePaused {
		s.setStateLocked(playermodels.Playing())
	}
}

// Stop is idempotent and synchronous: it cancels pending reconnects and
// the dispatch loop, tears down decoders, and transitions to stopped.
// Decoder teardown happens while s.mu is still held so it cannot race a
// dispatch goroutine that is mid-call into s.video/s.audio (§5 "all
// mutation [of decoders] occurs on the session's logical task context").
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state.Variant() == playermodels.StateStopped {
		s.mu.Unlock()
		return
	}
	s.stopPendingReconnectLocked()
	s.generation++ // fences any in-flight callbacks from this point on
	if s.cancelDispatch != nil {
		s.cancelDispatch()
		s.cancelDispatch = nil
	}
	client := s.client
	s.client = nil
	_ = s.video.Close()
	_ = s.audio.Close()
	s.setStateLocked(playermodels.Stopped())
	s.mu.Unlock()

	if client != nil {
		_ = client.Invalidate()
	}

	s.delegate.OnCleanup()
}

// Restart replays the last URL passed to Play. If Play has never
// succeeded in storing a URL, it is a no-op returning NoUrlToRestart
// (§7).
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	url := s.url
	s.mu.Unlock()
	if url == "" {
		return playermodels.NewError(playermodels.NoUrlToRestart, "restart() with no prior url", nil)
	}
	return s.Play(ctx, url)
}

func (s *Session) stopPendingReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) setStateLocked(next playermodels.SessionState) {
	s.state = next
	if s.rec != nil {
		s.rec.RecordState(next)
	}
	s.delegate.OnStateChange(next)
}

// handleTransportError enters error(cause) and, if eligible, schedules a
// reconnect per §4.4's policy: attempts × 2 seconds, max 3 attempts.
func (s *Session) handleTransportError(gen int64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return // superseded
	}

	s.setStateLocked(playermodels.Error(cause.Error()))
	if s.cancelDispatch != nil {
		s.cancelDispatch()
		s.cancelDispatch = nil
	}
	s.client = nil

	if !s.autoReconnect || s.reconnectAttempts >= maxReconnectAttempts {
		return
	}

	s.reconnectAttempts++
	delay := time.Duration(s.reconnectAttempts) * 2 * time.Second
	attemptGen := gen

	if s.rec != nil {
		s.rec.RecordReconnectAttempt()
	}

	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if attemptGen != s.generation {
			s.mu.Unlock()
			return
		}
		s.firstVideoTs, s.hasFirstVideoTs = 0, false
		s.firstAudioTs, s.hasFirstAudioTs = 0, false
		_ = s.video.Close()
		_ = s.audio.Close()
		s.video = decoder.NewVideo(nil)
		s.audio = decoder.NewAudio(nil)
		s.setStateLocked(playermodels.Connecting())
		s.mu.Unlock()

		_ = s.connect(context.Background(), attemptGen)
	})
}

// startDispatchLoop spawns one goroutine per external stream (§5), each
// reading until the dispatch context is cancelled or its channel closes.
func (s *Session) startDispatchLoop(ctx context.Context, client transport.Client, gen int64) {
	go s.dispatchStatus(ctx, client.StatusCh(), gen)
	go s.dispatchErrors(ctx, client.ErrorCh(), gen)
	go s.dispatchVideo(ctx, client.VideoCh(), gen)
	go s.dispatchAudio(ctx, client.AudioCh(), gen)
	go s.dispatchMetaData(ctx, client.MetaDataCh(), gen)
	go s.dispatchStatistics(ctx, client.StatisticsCh(), gen)
}

func (s *Session) currentGeneration() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) dispatchStatus(ctx context.Context, ch <-chan transport.StatusEvent, gen int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if s.currentGeneration() != gen {
				return
			}
			s.onStatus(ev)
		}
	}
}

func (s *Session) onStatus(ev transport.StatusEvent) {
	switch ev.Status {
	case transport.StatusFailed:
		cause := ev.Cause
		if cause == nil {
			cause = fmt.Errorf("transport failed")
		}
		s.handleTransportError(s.currentGeneration(), cause)

	case transport.StatusPlayStart, transport.StatusConnect:
		s.mu.Lock()
		if s.state.Variant() == playermodels.StateConnecting {
			s.setStateLocked(playermodels.Playing())
		}
		s.mu.Unlock()

	case transport.StatusDisconnected:
		// Disconnection without an explicit Failed status is treated as a
		// transport error so the reconnect policy still applies.
		if s.State().Variant() != playermodels.StateStopped {
			s.handleTransportError(s.currentGeneration(), fmt.Errorf("disconnected"))
		}
	}
}

func (s *Session) dispatchErrors(ctx context.Context, ch <-chan error, gen int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-ch:
			if !ok {
				return
			}
			if s.currentGeneration() != gen {
				return
			}
			if s.rec != nil {
				s.rec.RecordRTMPError()
			}
			s.handleTransportError(gen, err)
		}
	}
}

func (s *Session) dispatchVideo(ctx context.Context, ch <-chan transport.Tag, gen int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case tag, ok := <-ch:
			if !ok {
				return
			}
			s.onVideoTag(gen, tag)
		}
	}
}

// onVideoTag holds s.mu for its entire body, including every call into
// s.video. This is what actually prevents the race named in the review:
// Stop() and the reconnect timer also close/replace s.video only while
// holding s.mu, so a decoder can never be torn down or swapped mid-call.
func (s *Session) onVideoTag(gen int64, tag transport.Tag) {
	if s.currentGeneration() != gen {
		return
	}
	s.promoteToPlayingOnFirstTag()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return // superseded by stop()/reconnect while this tag was queued
	}
	if s.state.Variant() == playermodels.StatePaused {
		return
	}
	if !s.hasFirstVideoTs {
		s.firstVideoTs = tag.TimestampMs
		s.hasFirstVideoTs = true
	}
	firstTs := s.firstVideoTs

	if len(tag.Bytes) >= 2 && tag.Bytes[0] == 0x17 && tag.Bytes[1] == 0x00 {
		s.handleVideoConfigLocked(tag)
		return
	}

	hdr, avcc, err := bitstream.ParseVideoTagHeader(tag.Bytes)
	if err != nil {
		s.recordDropLocked("video", "parse_error")
		return
	}

	if !s.video.Ready() {
		if !hdr.KeyFrame {
			s.recordDropLocked("video", "decoder_not_ready")
			return
		}
		cfg, err := s.video.ProbeConfig(avcc, 4)
		if err != nil {
			s.recordDropLocked("video", "cold_start_probe_failed")
			return
		}
		if _, err := s.video.SubmitConfig(cfg); err != nil {
			if s.rec != nil {
				s.rec.RecordDecoderInitFailure("video")
			}
			s.recordDropLocked("video", "decoder_init_failed")
			return
		}
	}

	unit := bitstream.NewVideoUnit(hdr, avcc, tag.TimestampMs, firstTs)
	sample, err := s.video.Decode(unit)
	if err != nil {
		s.recordDropLocked("video", "decode_failed")
		return
	}
	if sample == nil {
		return // the decoder consumed the unit without producing a frame
	}

	if s.rec != nil {
		s.rec.RecordTagReceived("video", len(tag.Bytes))
		if hdr.KeyFrame {
			s.rec.RecordKeyFrame()
		}
	}
	s.monitor.RecordFrame()
	s.delegate.OnVideoSample(*sample)
}

// handleVideoConfigLocked requires s.mu to already be held by the caller.
func (s *Session) handleVideoConfigLocked(tag transport.Tag) {
	_, avcc, err := bitstream.ParseVideoTagHeader(tag.Bytes)
	if err != nil {
		s.recordDropLocked("video", "config_parse_error")
		return
	}
	cfg, err := bitstream.ParseAVCDecoderConfigurationRecord(avcc)
	if err != nil {
		s.recordDropLocked("video", "malformed_config")
		return
	}
	if _, err := s.video.SubmitConfig(cfg); err != nil {
		if s.rec != nil {
			s.rec.RecordDecoderInitFailure("video")
		}
	}
}

func (s *Session) dispatchAudio(ctx context.Context, ch <-chan transport.Tag, gen int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case tag, ok := <-ch:
			if !ok {
				return
			}
			s.onAudioTag(gen, tag)
		}
	}
}

// onAudioTag holds s.mu for its entire body for the same reason as
// onVideoTag: Stop() and the reconnect timer only close/replace s.audio
// while holding s.mu, so holding it here too rules out a concurrent
// Close()/reassignment mid-decode.
func (s *Session) onAudioTag(gen int64, tag transport.Tag) {
	if s.currentGeneration() != gen {
		return
	}
	s.promoteToPlayingOnFirstTag()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return // superseded by stop()/reconnect while this tag was queued
	}
	if s.state.Variant() == playermodels.StatePaused {
		return
	}
	if !s.hasFirstAudioTs {
		s.firstAudioTs = tag.TimestampMs
		s.hasFirstAudioTs = true
	}
	firstTs := s.firstAudioTs

	if len(tag.Bytes) >= 2 && (tag.Bytes[0]&0xF0) == 0xA0 && tag.Bytes[1] == 0x00 {
		s.handleAudioConfigLocked(tag)
		return
	}

	_, raw, err := bitstream.ParseAudioTagHeader(tag.Bytes)
	if err != nil {
		s.recordDropLocked("audio", "parse_error")
		return
	}

	if !s.audio.Ready() {
		s.recordDropLocked("audio", "decoder_not_ready")
		return
	}

	pts := bitstream.AudioUnitTiming(tag.TimestampMs, firstTs)
	unit := playermodels.AudioUnit{AACRaw: raw, PTSMs: pts}
	sample, err := s.audio.Decode(unit)
	if err != nil {
		s.recordDropLocked("audio", "decode_failed")
		return
	}

	if s.rec != nil {
		s.rec.RecordTagReceived("audio", len(tag.Bytes))
	}
	s.delegate.OnAudioSample(*sample)
}

// handleAudioConfigLocked requires s.mu to already be held by the caller.
func (s *Session) handleAudioConfigLocked(tag transport.Tag) {
	_, raw, err := bitstream.ParseAudioTagHeader(tag.Bytes)
	if err != nil {
		s.recordDropLocked("audio", "config_parse_error")
		return
	}
	objectType, sampleRate, channels, err := bitstream.ParseAudioSpecificConfig(raw)
	if err != nil {
		s.recordDropLocked("audio", "malformed_config")
		return
	}
	cfg := playermodels.AudioConfig{AudioObjectType: objectType, SampleRateHz: sampleRate, Channels: channels}
	if _, err := s.audio.SubmitConfig(cfg); err != nil {
		if s.rec != nil {
			s.rec.RecordDecoderInitFailure("audio")
		}
	}
}

// promoteToPlayingOnFirstTag implements the Open Question resolution:
// any media tag observed while connecting promotes the session to
// playing, even if the server never sends NetStream.Play.Start.
func (s *Session) promoteToPlayingOnFirstTag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Variant() == playermodels.StateConnecting {
		s.setStateLocked(playermodels.Playing())
	}
}

// recordDropLocked requires s.mu to already be held by the caller.
func (s *Session) recordDropLocked(kind, reason string) {
	s.monitor.RecordDroppedFrame()
	if s.rec != nil {
		s.rec.RecordFrameDropped(kind + ":" + reason)
		if reason == "decode_failed" {
			s.rec.RecordDecodeFailure(kind)
		}
	}
}

func (s *Session) dispatchMetaData(ctx context.Context, ch <-chan transport.MetaData, gen int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case md, ok := <-ch:
			if !ok {
				return
			}
			if s.currentGeneration() != gen {
				return
			}
			s.delegate.OnVideoConfig(int(md.Width), int(md.Height), md.DataRate)
		}
	}
}

func (s *Session) dispatchStatistics(ctx context.Context, ch <-chan transport.Statistics, gen int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if s.currentGeneration() != gen {
				return
			}
			stats := s.monitor.CurrentStats()
			if s.rec != nil {
				s.rec.RecordStats(stats)
			}
			s.delegate.OnStatistics(stats)
		}
	}
}
