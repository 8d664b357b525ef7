package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/probe"
	"github.com/eleven-am/govod/internal/runnertest"
)

var tools = domain.Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}

func newGenerator(fake *runnertest.Fake) *Generator {
	return NewGenerator(fake, probe.NewProber(fake, tools, nil), tools, nil)
}

func ffmpegCalls(fake *runnertest.Fake) []runnertest.Call {
	var out []runnertest.Call
	for _, c := range fake.Calls() {
		if c.Name == "ffmpeg" {
			out = append(out, c)
		}
	}
	return out
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, []float64{9, 18, 27, 36, 45, 54, 63, 72, 81}, Offsets(90, 9))
	assert.Equal(t, []float64{50}, Offsets(100, 1))
	assert.Nil(t, Offsets(90, 0))
	assert.Nil(t, Offsets(0, 3))
}

func TestMultiple_EvenlySpacedOffsets(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 90, Width: 1920, Height: 1080, Size: 1 << 20})}
	dir := t.TempDir()

	paths, err := newGenerator(fake).Multiple(context.Background(), "in.mp4", dir, 9, domain.DefaultThumbnailRequest())
	require.NoError(t, err)
	require.Len(t, paths, 9)

	calls := ffmpegCalls(fake)
	require.Len(t, calls, 9)
	for i, call := range calls {
		assert.Equal(t, fmt.Sprintf("%d.000", 9*(i+1)), call.Arg("-ss"))
		assert.Equal(t, "scale=640:360", call.Arg("-vf"))
		assert.Equal(t, "1", call.Arg("-frames:v"))
		assert.Equal(t, filepath.Join(dir, fmt.Sprintf("thumb_%03d.jpg", i+1)), paths[i])
		_, err := os.Stat(paths[i])
		assert.NoError(t, err)
	}
}

func TestMultiple_AnyFailureFailsAll(t *testing.T) {
	var n int
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		if call.Name == "ffprobe" {
			return runnertest.JSON(runnertest.ProbeJSON(60, 1280, 720, 1024, "aac"))
		}
		n++
		if n == 3 {
			return runnertest.Fail("ffmpeg", 1, "Output file is empty, nothing was encoded")
		}
		return domain.Result{}, nil
	}}

	paths, err := newGenerator(fake).Multiple(context.Background(), "in.mp4", t.TempDir(), 5, domain.ThumbnailRequest{})
	require.Error(t, err)
	assert.Nil(t, paths)
	assert.True(t, domain.IsKind(err, domain.KindThumbnail))
	assert.Contains(t, err.Error(), "nothing was encoded")
	assert.Equal(t, 3, n)
}

func TestMultiple_RejectsNonPositiveCount(t *testing.T) {
	fake := &runnertest.Fake{}
	_, err := newGenerator(fake).Multiple(context.Background(), "in.mp4", t.TempDir(), 0, domain.ThumbnailRequest{})
	require.Error(t, err)
	assert.Empty(t, fake.Calls())
}

func TestSingle_ExplicitOffset(t *testing.T) {
	fake := &runnertest.Fake{}
	out := filepath.Join(t.TempDir(), "poster.jpg")

	got, err := newGenerator(fake).Single(context.Background(), "in.mp4", out,
		domain.ThumbnailRequest{Offset: 4.25, Width: 320, Height: 180, Quality: 5})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "4.250", calls[0].Arg("-ss"))
	assert.Equal(t, "scale=320:180", calls[0].Arg("-vf"))
	assert.Equal(t, "5", calls[0].Arg("-q:v"))
	assert.Equal(t, out, calls[0].Last())
}

func TestSingle_AutoOffsetSeeksToMiddle(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 120, Width: 1280, Height: 720})}

	_, err := newGenerator(fake).Single(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "p.jpg"), domain.DefaultThumbnailRequest())
	require.NoError(t, err)

	calls := ffmpegCalls(fake)
	require.Len(t, calls, 1)
	assert.Equal(t, "60.000", calls[0].Arg("-ss"))
}

func TestSingle_ToolOverride(t *testing.T) {
	fake := &runnertest.Fake{}
	ctx := domain.WithTools(context.Background(), domain.Tools{FFmpeg: "/opt/ffmpeg-7/bin/ffmpeg"})

	_, err := newGenerator(fake).Single(ctx, "in.mp4", filepath.Join(t.TempDir(), "p.jpg"), domain.ThumbnailRequest{Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg-7/bin/ffmpeg", fake.Calls()[0].Name)
}

func TestSingle_FailureCarriesStderr(t *testing.T) {
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		return runnertest.Fail(call.Name, 1, "in.mp4: No such file or directory")
	}}

	_, err := newGenerator(fake).Single(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "p.jpg"), domain.ThumbnailRequest{Offset: 1})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindThumbnail))
	var perr *domain.ProcessError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, err.Error(), "No such file or directory")
}

func TestStoryboard(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 12, Width: 1280, Height: 720})}
	gen := newGenerator(fake)
	gen.SetStoryboardConfig(StoryboardConfig{Interval: 5, Columns: 2, Rows: 1})
	dir := t.TempDir()

	sb, err := gen.Storyboard(context.Background(), "in.mp4", dir)
	require.NoError(t, err)
	require.Len(t, sb.Sprites, 2)
	assert.Equal(t, filepath.Join(dir, "sprite-1.jpg"), sb.Sprites[0])

	vtt, err := os.ReadFile(sb.VTTPath)
	require.NoError(t, err)
	text := string(vtt)
	assert.True(t, strings.HasPrefix(text, "WEBVTT\n\n"))
	assert.Contains(t, text, "00:00:00.000 --> 00:00:05.000\nsprite-1.jpg#xywh=0,0,160,90\n")
	assert.Contains(t, text, "00:00:05.000 --> 00:00:10.000\nsprite-1.jpg#xywh=160,0,160,90\n")
	assert.Contains(t, text, "00:00:10.000 --> 00:00:12.000\nsprite-2.jpg#xywh=0,0,160,90\n")
	assert.Equal(t, 3, strings.Count(text, "-->"))
}

func TestFormatVTTTime(t *testing.T) {
	assert.Equal(t, "01:02:03.500", formatVTTTime(3723.5))
	assert.Equal(t, "00:00:00.000", formatVTTTime(0))
}
