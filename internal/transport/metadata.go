package transport

import (
	"bytes"

	amf0 "github.com/yutopp/go-amf0"
)

// decodeMetaData decodes an onMetaData AMF0 payload into the fields §6
// names ("on_video_config(width, height, data_rate)"). Any field missing
// or of the wrong type is left at zero rather than failing the whole
// decode — metadata is advisory, never required for playback.
func decodeMetaData(payload []byte) MetaData {
	var out MetaData

	var value amf0.ECMAArray
	if err := amf0.NewDecoder(bytes.NewReader(payload)).Decode(&value); err == nil {
		applyMetaDataFields(&out, map[string]interface{}(value))
		return out
	}

	// Some encoders emit onMetaData as a plain Object rather than an ECMA
	// array; fall back before giving up.
	var generic amf0.Object
	if err := amf0.NewDecoder(bytes.NewReader(payload)).Decode(&generic); err == nil {
		applyMetaDataFields(&out, map[string]interface{}(generic))
	}
	return out
}

func applyMetaDataFields(out *MetaData, fields map[string]interface{}) {
	if v, ok := asFloat(fields["width"]); ok {
		out.Width = v
	}
	if v, ok := asFloat(fields["height"]); ok {
		out.Height = v
	}
	if v, ok := asFloat(fields["videodatarate"]); ok {
		out.DataRate = v
	}
	if v, ok := asFloat(fields["framerate"]); ok {
		out.FrameRate = v
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
