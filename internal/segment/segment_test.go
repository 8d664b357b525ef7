package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
)

func TestName(t *testing.T) {
	assert.Equal(t, "720p_segment_000.ts", Name("720p", 0))
	assert.Equal(t, "1080p_segment_012.ts", Name("1080p", 12))
	assert.Equal(t, "480p_segment_1000.ts", Name("480p", 1000))
	assert.Equal(t, "720p_segment_%03d.ts", Pattern("720p"))
}

// planned lists count segments for quality with the names the segmenter uses.
func planned(quality string, count int) []domain.Segment {
	segs := make([]domain.Segment, count)
	for i := range segs {
		segs[i] = domain.Segment{Index: i, URI: Name(quality, i), Duration: 10}
	}
	return segs
}

func writeSegments(t *testing.T, dir string, segs []domain.Segment) {
	t.Helper()
	for _, s := range segs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, s.URI), []byte("ts"), 0o644))
	}
}

func TestVerify_MatchesDisk(t *testing.T) {
	dir := t.TempDir()
	segs := planned("720p", 3)
	writeSegments(t, dir, segs)
	writeSegments(t, dir, planned("480p", 4))

	assert.NoError(t, Verify(dir, "720p", segs))

	onDisk, err := OnDisk(dir, "720p")
	require.NoError(t, err)
	assert.Equal(t, []string{"720p_segment_000.ts", "720p_segment_001.ts", "720p_segment_002.ts"}, onDisk)
}

func TestVerify_MissingSegment(t *testing.T) {
	dir := t.TempDir()
	segs := planned("720p", 3)
	writeSegments(t, dir, segs[:2])

	assert.Error(t, Verify(dir, "720p", segs))
}

func TestVerify_ExtraSegmentOnDisk(t *testing.T) {
	dir := t.TempDir()
	writeSegments(t, dir, planned("720p", 4))

	assert.Error(t, Verify(dir, "720p", planned("720p", 3)))
}

func TestVerify_WrongNameOrEmpty(t *testing.T) {
	dir := t.TempDir()
	segs := planned("720p", 1)
	segs[0].URI = "720p-0.ts"
	writeSegments(t, dir, segs)
	assert.Error(t, Verify(dir, "720p", segs))

	dir = t.TempDir()
	segs = planned("720p", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, segs[0].URI), nil, 0o644))
	assert.Error(t, Verify(dir, "720p", segs))

	assert.Error(t, Verify(dir, "720p", nil))
}

func TestClean_RemovesOnlyQuality(t *testing.T) {
	dir := t.TempDir()
	writeSegments(t, dir, planned("720p", 3))
	writeSegments(t, dir, planned("480p", 2))

	require.NoError(t, Clean(dir, "720p"))

	onDisk, err := OnDisk(dir, "720p")
	require.NoError(t, err)
	assert.Empty(t, onDisk)

	onDisk, err = OnDisk(dir, "480p")
	require.NoError(t, err)
	assert.Len(t, onDisk, 2)
}

func TestVerify_ErrorOmitsQuality(t *testing.T) {
	dir := t.TempDir()
	writeSegments(t, dir, planned("720p", 4))

	err := Verify(dir, "720p", planned("720p", 3))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "720p:")
}
