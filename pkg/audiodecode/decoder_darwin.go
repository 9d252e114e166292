//go:build darwin

package audiodecode

/*
#cgo LDFLAGS: -framework AudioToolbox -framework CoreFoundation
#include <AudioToolbox/AudioToolbox.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func newPlatformDecoder(cfg playermodels.AudioConfig) (Decoder, error) {
	return newAudioConverterDecoder(cfg)
}

// audioConverterDecoder decodes AAC-LC via AudioToolbox's AudioConverter,
// the macOS/iOS analog of videodecode's VideoToolbox path. No magic
// cookie is set: the input ASBD is fully described by the config fields,
// so AudioConverterNew alone is sufficient (§4.3 "Initialization").
type audioConverterDecoder struct {
	converter C.AudioConverterRef
	cfg       playermodels.AudioConfig
	closed    bool
}

func newAudioConverterDecoder(cfg playermodels.AudioConfig) (Decoder, error) {
	inputFormat := C.AudioStreamBasicDescription{}
	inputFormat.mSampleRate = C.Float64(cfg.SampleRateHz)
	inputFormat.mFormatID = C.kAudioFormatMPEG4AAC
	inputFormat.mChannelsPerFrame = C.UInt32(cfg.Channels)
	inputFormat.mFramesPerPacket = C.UInt32(FramesPerUnit)

	outputFormat := C.AudioStreamBasicDescription{}
	outputFormat.mSampleRate = C.Float64(cfg.SampleRateHz)
	outputFormat.mFormatID = C.kAudioFormatLinearPCM
	outputFormat.mFormatFlags = C.kLinearPCMFormatFlagIsSignedInteger | C.kLinearPCMFormatFlagIsPacked
	outputFormat.mChannelsPerFrame = C.UInt32(cfg.Channels)
	outputFormat.mBitsPerChannel = 16
	outputFormat.mBytesPerFrame = C.UInt32(2 * cfg.Channels)
	outputFormat.mFramesPerPacket = 1
	outputFormat.mBytesPerPacket = outputFormat.mBytesPerFrame

	var converter C.AudioConverterRef
	status := C.AudioConverterNew(&inputFormat, &outputFormat, &converter)
	if status != C.noErr {
		return nil, fmt.Errorf("audio decoder init failed: AudioConverterNew status=%d", int(status))
	}

	return &audioConverterDecoder{converter: converter, cfg: cfg}, nil
}

func (d *audioConverterDecoder) Decode(unit playermodels.AudioUnit) (*playermodels.DecodedSample, error) {
	if d.closed {
		return nil, fmt.Errorf("decode after close")
	}
	if len(unit.AACRaw) == 0 {
		return nil, fmt.Errorf("audio decode failed: empty AAC access unit")
	}

	outSize := BufferSize(d.cfg.Channels)
	out := make([]byte, outSize)

	inputBuf := C.AudioBuffer{
		mNumberChannels: C.UInt32(d.cfg.Channels),
		mDataByteSize:   C.UInt32(len(unit.AACRaw)),
		mData:           unsafe.Pointer(&unit.AACRaw[0]),
	}
	inputList := C.AudioBufferList{mNumberBuffers: 1}
	inputList.mBuffers[0] = inputBuf

	outputBuf := C.AudioBuffer{
		mNumberChannels: C.UInt32(d.cfg.Channels),
		mDataByteSize:   C.UInt32(outSize),
		mData:           unsafe.Pointer(&out[0]),
	}
	outputList := C.AudioBufferList{mNumberBuffers: 1}
	outputList.mBuffers[0] = outputBuf

	var ioPackets C.UInt32 = 1
	status := C.AudioConverterFillComplexBuffer(
		d.converter, nil, nil, &ioPackets, &outputList, nil)
	if status != C.noErr {
		return nil, fmt.Errorf("audio decode failed: AudioConverterFillComplexBuffer status=%d", int(status))
	}

	written := int(outputList.mBuffers[0].mDataByteSize)
	if written > len(out) {
		written = len(out)
	}

	return &playermodels.DecodedSample{
		Media: playermodels.MediaAudioPCM,
		PCM:   out[:written],
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

func (d *audioConverterDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.converter != nil {
		C.AudioConverterDispose(d.converter)
	}
	return nil
}
