//go:build darwin

package videodecode

/*
#cgo LDFLAGS: -framework VideoToolbox -framework CoreMedia -framework CoreFoundation
#include <VideoToolbox/VideoToolbox.h>
#include <CoreMedia/CoreMedia.h>
#include <stdlib.h>

extern void goVideoDecodeOutputCallback(void *refcon, void *sourceRefcon, OSStatus status,
	VTDecodeInfoFlags infoFlags, CVImageBufferRef imageBuffer);

static void decodeOutputCallbackTrampoline(void *decompressionOutputRefCon,
	void *sourceFrameRefCon, OSStatus status, VTDecodeInfoFlags infoFlags,
	CVImageBufferRef imageBuffer, CMTime presentationTimeStamp, CMTime presentationDuration) {
	goVideoDecodeOutputCallback(decompressionOutputRefCon, sourceFrameRefCon, status, infoFlags, imageBuffer);
}

static VTDecompressionOutputCallbackRecord makeCallbackRecord(void *refcon) {
	VTDecompressionOutputCallbackRecord record;
	record.decompressionOutputCallback = decodeOutputCallbackTrampoline;
	record.decompressionOutputRefCon = refcon;
	return record;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

func newPlatformDecoder(cfg playermodels.VideoConfig) (Decoder, error) {
	return newVideoToolboxDecoder(cfg)
}

// videoToolboxDecoder decodes H.264 via VideoToolbox's hardware-accelerated
// decompression session. The session's output callback fires
// asynchronously with a platform-assigned (and, per §9, unreliable)
// timestamp; the pending map, keyed by an id passed as sourceFrameRefCon,
// threads the *original* input timing through so Decode can attach it to
// the outgoing sample
// instead of trusting whatever VideoToolbox reports.
type videoToolboxDecoder struct {
	mu      sync.Mutex
	session C.VTDecompressionSessionRef
	formatDesc C.CMVideoFormatDescriptionRef
	width, height int

	pending map[int64]pendingTiming
	nextID  int64

	result chan decodeResult
	closed bool
}

type pendingTiming struct {
	pts, dts int64
}

type decodeResult struct {
	sample *playermodels.DecodedSample
	err    error
}

var darwinDecoders sync.Map // C refcon ptr -> *videoToolboxDecoder, for the cgo callback to look up

func newVideoToolboxDecoder(cfg playermodels.VideoConfig) (Decoder, error) {
	formatDesc, width, height, err := buildFormatDescription(cfg.SPS, cfg.PPS)
	if err != nil {
		return nil, fmt.Errorf("video decoder init failed: %w", err)
	}

	d := &videoToolboxDecoder{
		formatDesc: formatDesc,
		width:      width,
		height:     height,
		pending:    make(map[int64]pendingTiming),
		result:     make(chan decodeResult, 1),
	}

	refcon := unsafe.Pointer(d)
	darwinDecoders.Store(refcon, d)

	callback := C.makeCallbackRecord(refcon)

	var destImageBufferAttrs C.CFDictionaryRef // nil: let VideoToolbox pick a native pixel format
	status := C.VTDecompressionSessionCreate(
		nil, // allocator
		formatDesc,
		nil, // decoder specification
		destImageBufferAttrs,
		&callback,
		&d.session,
	)
	if status != C.noErr {
		darwinDecoders.Delete(refcon)
		return nil, fmt.Errorf("video decoder init failed: VTDecompressionSessionCreate status=%d", int(status))
	}

	return d, nil
}

// buildFormatDescription constructs a CMVideoFormatDescription from the
// SPS/PPS pair, failing with FormatDescriptionInvalid-equivalent if
// VideoToolbox rejects the parameter sets (§4.2).
func buildFormatDescription(sps, pps []byte) (C.CMVideoFormatDescriptionRef, int, int, error) {
	if len(sps) < 4 || len(pps) < 1 {
		return nil, 0, 0, fmt.Errorf("invalid SPS/PPS pair")
	}

	spsPtr := (*C.uint8_t)(unsafe.Pointer(&sps[0]))
	ppsPtr := (*C.uint8_t)(unsafe.Pointer(&pps[0]))

	parameterSetPointers := []*C.uint8_t{spsPtr, ppsPtr}
	parameterSetSizes := []C.size_t{C.size_t(len(sps)), C.size_t(len(pps))}

	var formatDesc C.CMVideoFormatDescriptionRef
	status := C.CMVideoFormatDescriptionCreateFromH264ParameterSets(
		nil, // allocator
		2,   // parameter set count
		&parameterSetPointers[0],
		&parameterSetSizes[0],
		4, // NAL length-prefix size; AVCC payloads are submitted unchanged and the configured NALULengthSize is not consulted
		&formatDesc,
	)
	if status != C.noErr {
		return nil, 0, 0, fmt.Errorf("CMVideoFormatDescriptionCreateFromH264ParameterSets status=%d", int(status))
	}

	dims := C.CMVideoFormatDescriptionGetDimensions(formatDesc)
	return formatDesc, int(dims.width), int(dims.height), nil
}

func (d *videoToolboxDecoder) Decode(unit playermodels.VideoUnit) (*playermodels.DecodedSample, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("decode after close")
	}

	id := d.nextID
	d.nextID++
	d.pending[id] = pendingTiming{pts: unit.PTSMs, dts: unit.DTSMs}
	d.mu.Unlock()

	sampleBuf, err := makeSampleBuffer(d.formatDesc, unit.AVCCPayload)
	if err != nil {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		return nil, fmt.Errorf("video decode failed: %w", err)
	}
	defer C.CFRelease(C.CFTypeRef(sampleBuf))

	sourceRefcon := unsafe.Pointer(uintptr(id))
	status := C.VTDecompressionSessionDecodeFrame(d.session, sampleBuf, 0, sourceRefcon, nil)
	if status != C.noErr {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		return nil, fmt.Errorf("video decode failed: VTDecompressionSessionDecodeFrame status=%d", int(status))
	}

	res := <-d.result
	return res.sample, res.err
}

// onOutput is invoked (via the cgo trampoline) from VideoToolbox's
// callback thread. It discards the platform-reported timestamp entirely
// and reattaches the original input PTS/DTS looked up by sourceFrameRefCon
// (§9).
func (d *videoToolboxDecoder) onOutput(sourceID int64, status int32, imageBuffer unsafe.Pointer) {
	d.mu.Lock()
	timing, ok := d.pending[sourceID]
	delete(d.pending, sourceID)
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return // discard: stop() already torn down the decoder (§5 cancellation)
	}

	if status != 0 || !ok || imageBuffer == nil {
		d.result <- decodeResult{nil, fmt.Errorf("video decode failed: status=%d", status)}
		return
	}

	pixels := copyPlanarPixels(imageBuffer, d.width, d.height)
	d.result <- decodeResult{sample: &playermodels.DecodedSample{
		Media:  playermodels.MediaVideoFrame,
		Pixels: pixels,
		Format: playermodels.FormatDescriptor{Width: d.width, Height: d.height},
		PTSMs:  timing.pts,
		DTSMs:  timing.dts,
		HasDTS: true,
	}}
}

func (d *videoToolboxDecoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	session := d.session
	d.mu.Unlock()

	if session != nil {
		C.VTDecompressionSessionInvalidate(session)
		C.CFRelease(C.CFTypeRef(session))
	}
	darwinDecoders.Delete(unsafe.Pointer(d))
	return nil
}

// makeSampleBuffer wraps one AVCC-encoded access unit in a CMSampleBuffer
// so it can be submitted to VTDecompressionSessionDecodeFrame.
func makeSampleBuffer(formatDesc C.CMVideoFormatDescriptionRef, avcc []byte) (C.CMSampleBufferRef, error) {
	if len(avcc) == 0 {
		return nil, fmt.Errorf("empty AVCC payload")
	}

	var blockBuf C.CMBlockBufferRef
	status := C.CMBlockBufferCreateWithMemoryBlock(
		nil, nil, C.size_t(len(avcc)), nil, nil, 0, C.size_t(len(avcc)), 0, &blockBuf)
	if status != C.noErr {
		return nil, fmt.Errorf("CMBlockBufferCreateWithMemoryBlock status=%d", int(status))
	}
	defer C.CFRelease(C.CFTypeRef(blockBuf))

	C.CMBlockBufferReplaceDataBytes(unsafe.Pointer(&avcc[0]), blockBuf, 0, C.size_t(len(avcc)))

	var sampleBuf C.CMSampleBufferRef
	status = C.CMSampleBufferCreate(
		nil, blockBuf, 1, nil, nil, formatDesc, 1, 0, nil, 0, nil, &sampleBuf)
	if status != C.noErr {
		return nil, fmt.Errorf("CMSampleBufferCreate status=%d", int(status))
	}

	return sampleBuf, nil
}

// copyPlanarPixels copies a 4:2:0 bi-planar CVImageBuffer into a flat Go
// byte slice (luma plane followed by interleaved chroma plane).
func copyPlanarPixels(imageBuffer unsafe.Pointer, width, height int) []byte {
	pixelBuffer := C.CVPixelBufferRef(imageBuffer)
	C.CVPixelBufferLockBaseAddress(pixelBuffer, C.kCVPixelBufferLock_ReadOnly)
	defer C.CVPixelBufferUnlockBaseAddress(pixelBuffer, C.kCVPixelBufferLock_ReadOnly)

	out := make([]byte, width*height+(width*height)/2)

	lumaBase := C.CVPixelBufferGetBaseAddressOfPlane(pixelBuffer, 0)
	lumaStride := int(C.CVPixelBufferGetBytesPerRowOfPlane(pixelBuffer, 0))
	lumaHeight := int(C.CVPixelBufferGetHeightOfPlane(pixelBuffer, 0))
	copyPlane(out[:width*height], lumaBase, lumaStride, width, lumaHeight)

	chromaBase := C.CVPixelBufferGetBaseAddressOfPlane(pixelBuffer, 1)
	chromaStride := int(C.CVPixelBufferGetBytesPerRowOfPlane(pixelBuffer, 1))
	chromaHeight := int(C.CVPixelBufferGetHeightOfPlane(pixelBuffer, 1))
	copyPlane(out[width*height:], chromaBase, chromaStride, width, chromaHeight)

	return out
}

func copyPlane(dst []byte, base unsafe.Pointer, stride, width, height int) {
	rowBytes := width
	if rowBytes > stride {
		rowBytes = stride
	}
	for row := 0; row < height; row++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base)+uintptr(row*stride))), rowBytes)
		copy(dst[row*width:row*width+rowBytes], src)
	}
}

//export goVideoDecodeOutputCallback
func goVideoDecodeOutputCallback(refcon, sourceRefcon unsafe.Pointer, status C.OSStatus, infoFlags C.VTDecodeInfoFlags, imageBuffer C.CVImageBufferRef) {
	v, ok := darwinDecoders.Load(refcon)
	if !ok {
		return
	}
	d := v.(*videoToolboxDecoder)
	d.onOutput(int64(uintptr(sourceRefcon)), int32(status), unsafe.Pointer(imageBuffer))
}
