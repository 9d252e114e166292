package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

const eventBufferSize = 64

// RTMPClient dials an RTMP server and plays a named stream, translating
// the yutopp/go-rtmp connection handler callbacks into the six Client
// event streams. It is the client-mode mirror of the teacher's
// internal/rtmp.ConnHandler: same handler shape, opposite direction.
type RTMPClient struct {
	statusCh     chan StatusEvent
	errorCh      chan error
	videoCh      chan Tag
	audioCh      chan Tag
	metaDataCh   chan MetaData
	statisticsCh chan Statistics

	bytesReceived uint64 // atomic

	mu        sync.Mutex
	conn      *rtmp.ClientConn
	stream    *rtmp.Stream
	invalid   bool
	closeOnce sync.Once
}

// NewRTMPClient constructs an unconnected client. Call Play to dial and
// start playback.
func NewRTMPClient() *RTMPClient {
	return &RTMPClient{
		statusCh:     make(chan StatusEvent, eventBufferSize),
		errorCh:      make(chan error, eventBufferSize),
		videoCh:      make(chan Tag, eventBufferSize),
		audioCh:      make(chan Tag, eventBufferSize),
		metaDataCh:   make(chan MetaData, 4),
		statisticsCh: make(chan Statistics, 4),
	}
}

func (c *RTMPClient) StatusCh() <-chan StatusEvent    { return c.statusCh }
func (c *RTMPClient) ErrorCh() <-chan error           { return c.errorCh }
func (c *RTMPClient) VideoCh() <-chan Tag             { return c.videoCh }
func (c *RTMPClient) AudioCh() <-chan Tag             { return c.audioCh }
func (c *RTMPClient) MetaDataCh() <-chan MetaData     { return c.metaDataCh }
func (c *RTMPClient) StatisticsCh() <-chan Statistics { return c.statisticsCh }

// Play parses an rtmp:// URL into (addr, app, streamKey), dials the
// server, sends connect/createStream/play, and returns once the play
// command has been issued. Event delivery continues asynchronously on the
// channels until Invalidate or a fatal transport error.
func (c *RTMPClient) Play(ctx context.Context, rawURL string) error {
	addr, app, streamKey, err := splitRTMPURL(rawURL)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	c.emitStatus(StatusHandshakeStart, nil)

	handler := &clientHandler{owner: c}
	conn, err := rtmp.Dial("rtmp", addr, &rtmp.ConnConfig{
		Handler: handler,
		ControlState: rtmp.StreamControlStateConfig{
			DefaultBandwidthWindowSize: 6 * 1024 * 1024,
		},
	})
	if err != nil {
		c.emitStatus(StatusFailed, err)
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	c.emitStatus(StatusHandshakeDone, nil)

	if err := conn.Connect(ctx, &rtmpmsg.NetConnectionConnect{
		Command: rtmpmsg.NetConnectionConnectCommand{
			App:      app,
			FlashVer: "rtmpplayer/1.0",
			TCURL:    rawURL,
		},
	}); err != nil {
		conn.Close()
		c.emitStatus(StatusFailed, err)
		return fmt.Errorf("transport: connect: %w", err)
	}
	c.emitStatus(StatusConnect, nil)

	stream, err := conn.CreateStream(ctx, &rtmpmsg.NetConnectionCreateStream{})
	if err != nil {
		conn.Close()
		c.emitStatus(StatusFailed, err)
		return fmt.Errorf("transport: createStream: %w", err)
	}

	if err := stream.Play(ctx, &rtmpmsg.NetStreamPlay{
		StreamName: streamKey,
	}); err != nil {
		conn.Close()
		c.emitStatus(StatusFailed, err)
		return fmt.Errorf("transport: play: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.stream = stream
	c.mu.Unlock()

	c.emitStatus(StatusPlayStart, nil)
	return nil
}

// Invalidate tears down the connection. Safe to call multiple times and
// from any goroutine; subsequent channel sends are suppressed.
func (c *RTMPClient) Invalidate() error {
	c.mu.Lock()
	c.invalid = true
	conn := c.conn
	c.mu.Unlock()

	var err error
	c.closeOnce.Do(func() {
		if conn != nil {
			err = conn.Close()
		}
		c.closeChannels()
	})
	return err
}

func (c *RTMPClient) closeChannels() {
	close(c.statusCh)
	close(c.errorCh)
	close(c.videoCh)
	close(c.audioCh)
	close(c.metaDataCh)
	close(c.statisticsCh)
}

func (c *RTMPClient) isInvalid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalid
}

func (c *RTMPClient) emitStatus(s Status, cause error) {
	if c.isInvalid() {
		return
	}
	select {
	case c.statusCh <- StatusEvent{Status: s, Cause: cause}:
	default:
	}
}

func (c *RTMPClient) emitError(err error) {
	if c.isInvalid() {
		return
	}
	select {
	case c.errorCh <- err:
	default:
	}
}

func (c *RTMPClient) emitVideo(tag Tag) {
	if c.isInvalid() {
		return
	}
	select {
	case c.videoCh <- tag:
	default:
	}
}

func (c *RTMPClient) emitAudio(tag Tag) {
	if c.isInvalid() {
		return
	}
	select {
	case c.audioCh <- tag:
	default:
	}
}

func (c *RTMPClient) emitMetaData(m MetaData) {
	if c.isInvalid() {
		return
	}
	select {
	case c.metaDataCh <- m:
	default:
	}
}

func (c *RTMPClient) recordBytes(n int) {
	total := atomic.AddUint64(&c.bytesReceived, uint64(n))
	if c.isInvalid() {
		return
	}
	select {
	case c.statisticsCh <- Statistics{BytesReceived: total}:
	default:
	}
}

// clientHandler implements rtmp.Handler and forwards every callback that
// matters to the owning RTMPClient's event channels, the same way the
// teacher's ConnHandler forwards OnAudio/OnVideo to the stream manager.
type clientHandler struct {
	rtmp.DefaultHandler
	owner *RTMPClient
}

func (h *clientHandler) OnStatus(cmd *rtmpmsg.NetStreamOnStatus) error {
	if cmd == nil {
		return nil
	}
	code, _ := cmd.Infos["code"].(string)
	switch code {
	case "NetStream.Play.Start":
		h.owner.emitStatus(StatusPlayStart, nil)
	case "NetStream.Play.Stop", "NetConnection.Connect.Closed":
		h.owner.emitStatus(StatusDisconnected, nil)
	case "NetStream.Play.Failed", "NetConnection.Connect.Rejected":
		h.owner.emitStatus(StatusFailed, fmt.Errorf("rtmp status: %s", code))
	default:
		h.owner.emitStatus(StatusUnknown, nil)
	}
	return nil
}

func (h *clientHandler) OnSetDataFrame(timestamp uint32, data *rtmpmsg.NetStreamSetDataFrame) error {
	if data == nil {
		return nil
	}
	meta := decodeMetaData(data.Payload)
	h.owner.emitMetaData(meta)
	return nil
}

func (h *clientHandler) OnAudio(timestamp uint32, payload io.Reader) error {
	buf, err := io.ReadAll(payload)
	if err != nil && len(buf) == 0 {
		h.owner.emitError(fmt.Errorf("transport: read audio tag: %w", err))
		return nil
	}
	h.owner.recordBytes(len(buf))
	h.owner.emitAudio(Tag{Bytes: buf, TimestampMs: int64(timestamp)})
	return nil
}

func (h *clientHandler) OnVideo(timestamp uint32, payload io.Reader) error {
	buf, err := io.ReadAll(payload)
	if err != nil && len(buf) == 0 {
		h.owner.emitError(fmt.Errorf("transport: read video tag: %w", err))
		return nil
	}
	h.owner.recordBytes(len(buf))
	h.owner.emitVideo(Tag{Bytes: buf, TimestampMs: int64(timestamp)})
	return nil
}

func (h *clientHandler) OnClose() {
	h.owner.emitStatus(StatusDisconnected, nil)
}

// splitRTMPURL parses "rtmp://host:port/app/streamKey" into its dial
// address, app name, and stream key, the client-side inverse of the
// teacher's parseStreamKeyAndToken.
func splitRTMPURL(raw string) (addr, app, streamKey string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid rtmp url: %w", err)
	}
	if u.Scheme != "rtmp" {
		return "", "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	addr = u.Host
	if u.Port() == "" {
		addr = u.Host + ":1935"
	}

	path := strings.TrimPrefix(u.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("rtmp url must be rtmp://host/app/streamKey, got %q", raw)
	}
	return addr, parts[0], parts[1], nil
}
