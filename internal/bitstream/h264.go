package bitstream

// NAL unit types relevant to AVCC parsing and embedded parameter-set
// probing (internal/decoder's cold-start path).
const (
	NALUnitTypeSPS = 7
	NALUnitTypePPS = 8
)

// naluLengthSize must be one of these per the AVCDecoderConfigurationRecord
// invariant (§3: "nalu_length_size equals (lengthSizeMinusOne & 0x03) + 1").
func validNALULengthSize(n int) bool {
	return n == 1 || n == 2 || n == 4
}
