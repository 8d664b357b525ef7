package encoders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/runnertest"
)

const encodersOut = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`

const hwaccelsOut = `Hardware acceleration methods:
vdpau
cuda

`

func TestDetect(t *testing.T) {
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		if call.Last() == "-encoders" {
			return runnertest.JSON(encodersOut)
		}
		return runnertest.JSON(hwaccelsOut)
	}}

	caps, err := Detect(context.Background(), fake, "ffmpeg")
	require.NoError(t, err)

	assert.True(t, caps.Encoders["libx264"])
	assert.True(t, caps.Encoders["h264_nvenc"])
	assert.False(t, caps.Encoders["Video"])
	assert.Equal(t, []string{"vdpau", "cuda"}, caps.HWAccels)
	assert.Equal(t, []string{"libmp3lame"}, caps.Missing(Required...))
}

func TestDetect_ProcessFailure(t *testing.T) {
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		return runnertest.Fail(call.Name, 1, "Unrecognized option 'encoders'")
	}}

	_, err := Detect(context.Background(), fake, "ffmpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unrecognized option")
}
