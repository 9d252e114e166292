package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRTMPURL(t *testing.T) {
	addr, app, streamKey, err := splitRTMPURL("rtmp://example.com:1935/live/mystream")
	require.NoError(t, err)
	require.Equal(t, "example.com:1935", addr)
	require.Equal(t, "live", app)
	require.Equal(t, "mystream", streamKey)
}

func TestSplitRTMPURLDefaultPort(t *testing.T) {
	addr, _, _, err := splitRTMPURL("rtmp://example.com/live/mystream")
	require.NoError(t, err)
	require.Equal(t, "example.com:1935", addr)
}

func TestSplitRTMPURLRejectsWrongScheme(t *testing.T) {
	_, _, _, err := splitRTMPURL("http://example.com/live/mystream")
	require.Error(t, err)
}

func TestSplitRTMPURLRejectsMissingStreamKey(t *testing.T) {
	_, _, _, err := splitRTMPURL("rtmp://example.com/live")
	require.Error(t, err)
}

func TestApplyMetaDataFields(t *testing.T) {
	var out MetaData
	applyMetaDataFields(&out, map[string]interface{}{
		"width":         float64(1280),
		"height":        float64(720),
		"videodatarate": float64(2500),
		"framerate":     float64(30),
	})

	require.Equal(t, 1280.0, out.Width)
	require.Equal(t, 720.0, out.Height)
	require.Equal(t, 2500.0, out.DataRate)
	require.Equal(t, 30.0, out.FrameRate)
}

func TestApplyMetaDataFieldsIgnoresMissingKeys(t *testing.T) {
	var out MetaData
	applyMetaDataFields(&out, map[string]interface{}{"width": float64(640)})
	require.Equal(t, 640.0, out.Width)
	require.Equal(t, 0.0, out.Height)
}
