package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
)

func TestSeconds(t *testing.T) {
	cases := []struct {
		kind     domain.OperationKind
		duration float64
		want     int
	}{
		{domain.OpThumbnail, 600, 60},
		{domain.OpConvert, 600, 900},
		{domain.OpHLS, 600, 1800},
		{domain.OpCompress, 600, 1200},
		{domain.OpAudio, 600, 180},
		{domain.OpThumbnail, 15, 2},
		{domain.OpConvert, 0, 0},
		{domain.OpHLS, -5, 0},
	}
	for _, tc := range cases {
		got, err := Seconds(tc.duration, tc.kind)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s over %.1fs", tc.kind, tc.duration)
	}
}

func TestSeconds_UnknownKind(t *testing.T) {
	_, err := Seconds(60, "upscale")
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	assert.Equal(t, 10+150+300, Ingest(100, domain.IngestRequest{ThumbnailCount: 5}))
	assert.Equal(t, 10, Ingest(100, domain.IngestRequest{ThumbnailCount: 5, SkipLadder: true, SkipHLS: true}))
	assert.Equal(t, 150+300, Ingest(100, domain.IngestRequest{}))
	assert.Equal(t, 0, Ingest(100, domain.IngestRequest{SkipLadder: true, SkipHLS: true}))
}
