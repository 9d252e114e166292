package decoder

import (
	"fmt"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
	"github.com/rapidrtmp/rtmpplayer/pkg/audiodecode"
)

// Audio wraps an audiodecode.Decoder, built lazily from the first AAC
// sequence header.
type Audio struct {
	factory audiodecode.Factory
	impl    audiodecode.Decoder
	cfg     *playermodels.AudioConfig
}

// NewAudio constructs an (uninitialized) audio decoder wrapper.
func NewAudio(factory audiodecode.Factory) *Audio {
	if factory == nil {
		factory = audiodecode.New
	}
	return &Audio{factory: factory}
}

// SubmitConfig processes a parsed AudioSpecificConfig. A byte-identical
// resubmission is a no-op, mirroring Video.SubmitConfig.
func (a *Audio) SubmitConfig(cfg playermodels.AudioConfig) (bool, error) {
	if a.cfg != nil && *a.cfg == cfg {
		return false, nil
	}

	if a.impl != nil {
		_ = a.impl.Close()
		a.impl = nil
	}

	impl, err := a.factory(cfg)
	if err != nil {
		return false, playermodels.NewError(playermodels.DecoderInitFailed, "audio decoder init failed", err)
	}

	a.impl = impl
	saved := cfg
	a.cfg = &saved
	return true, nil
}

// Ready reports whether a decoder has been built.
func (a *Audio) Ready() bool { return a.impl != nil }

// Decode submits one AAC access unit. A decode failure is always
// non-fatal per §4.3 — the session drops the unit and continues.
func (a *Audio) Decode(unit playermodels.AudioUnit) (*playermodels.DecodedSample, error) {
	if a.impl == nil {
		return nil, fmt.Errorf("audio decoder not initialized")
	}
	sample, err := a.impl.Decode(unit)
	if err != nil {
		return nil, playermodels.NewError(playermodels.DecodeFailed, "audio unit dropped", err)
	}
	return sample, nil
}

// Close releases the underlying converter, if any.
func (a *Audio) Close() error {
	if a.impl == nil {
		return nil
	}
	err := a.impl.Close()
	a.impl = nil
	a.cfg = nil
	return err
}
