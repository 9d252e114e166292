// Command rtmpplay is a minimal demo CLI for the player core: it plays a
// single RTMP URL, prints decoded-sample and state-change notifications to
// stdout, and serves Prometheus metrics, mirroring the teacher's
// sequential main.go wiring (config → components → run).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rapidrtmp/rtmpplayer/internal/config"
	"github.com/rapidrtmp/rtmpplayer/internal/metrics"
	"github.com/rapidrtmp/rtmpplayer/internal/session"
	"github.com/rapidrtmp/rtmpplayer/internal/transport"
	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	cfg := config.Load()
	url := cfg.RTMPUrl
	if flag.NArg() > 0 {
		url = flag.Arg(0)
	}
	if url == "" {
		log.Fatal("usage: rtmpplay [-metrics-addr=:9090] rtmp://host/app/streamKey")
	}

	log.Printf("Starting rtmpplay: url=%s auto_reconnect=%v", url, cfg.AutoReconnect)

	m := metrics.New()
	log.Println("Prometheus metrics initialized")

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Printf("Metrics server listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	delegate := &stdoutDelegate{}
	sess := session.New(func() transport.Client {
		return transport.NewRTMPClient()
	}, delegate, cfg.AutoReconnect, session.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		sess.Stop()
		cancel()
	}()

	if err := sess.Play(ctx, url); err != nil {
		log.Fatalf("play failed: %v", err)
	}

	<-ctx.Done()
}

// stdoutDelegate is the renderer sink named in §6: it prints notifications
// instead of driving an actual video/audio output device.
type stdoutDelegate struct{}

func (d *stdoutDelegate) OnStateChange(s playermodels.SessionState) {
	fmt.Printf("[state] %s\n", s)
}

func (d *stdoutDelegate) OnVideoSample(s playermodels.DecodedSample) {
	fmt.Printf("[video] pts=%dms dts=%dms %dx%d\n", s.PTSMs, s.DTSMs, s.Format.Width, s.Format.Height)
}

func (d *stdoutDelegate) OnAudioSample(s playermodels.DecodedSample) {
	fmt.Printf("[audio] pts=%dms %dHz ch=%d\n", s.PTSMs, s.Format.SampleRateHz, s.Format.Channels)
}

func (d *stdoutDelegate) OnVideoConfig(width, height int, dataRateKbps float64) {
	fmt.Printf("[config] %dx%d data_rate=%.0fkbps\n", width, height, dataRateKbps)
}

func (d *stdoutDelegate) OnStatistics(s playermodels.Stats) {
	fmt.Printf("[stats] fps=%.1f total=%d dropped=%d duration=%.1fs\n", s.FPS, s.TotalFrames, s.DroppedFrames, s.DurationS)
}

func (d *stdoutDelegate) OnCleanup() {
	fmt.Println("[cleanup]")
}
