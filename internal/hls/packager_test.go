package hls

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/rendition"
	"github.com/eleven-am/govod/internal/runnertest"
	"github.com/eleven-am/govod/internal/segment"
)

var tools = domain.Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}

func TestPackage_MasterPlaylist(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 25})}
	dir := t.TempDir()
	ladder := rendition.DefaultLadder()

	bundle, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{
		Source: "in.mp4", OutputDir: dir, Ladder: ladder,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "master.m3u8"), bundle.MasterPath)
	onDisk, err := os.ReadFile(bundle.MasterPath)
	require.NoError(t, err)
	assert.Equal(t, bundle.Master, string(onDisk))

	lines := strings.Split(strings.TrimSpace(bundle.Master), "\n")
	assert.Equal(t, "#EXTM3U", lines[0])

	var streams int
	for i, line := range lines {
		if !strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			continue
		}
		level := ladder[streams]
		assert.Contains(t, line, "BANDWIDTH="+strconv.Itoa(level.BitrateKbps*1000))
		assert.Contains(t, line, "RESOLUTION="+level.Resolution())
		require.Less(t, i+1, len(lines))
		assert.Equal(t, level.Name+".m3u8", lines[i+1])
		streams++
	}
	assert.Equal(t, 3, streams)

	require.Len(t, bundle.Variants, 3)
	for i, v := range bundle.Variants {
		assert.Equal(t, ladder[i].Name, v.Level.Name)
		assert.Equal(t, []string{
			segment.Name(v.Level.Name, 0),
			segment.Name(v.Level.Name, 1),
			segment.Name(v.Level.Name, 2),
		}, v.Segments)
	}
}

func TestPackage_DefaultsAndSequentialOrder(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 30})}

	_, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{Source: "in.mp4", OutputDir: t.TempDir()})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 3)
	for i, name := range []string{"480p", "720p", "1080p"} {
		assert.Equal(t, "10", calls[i].Arg("-hls_time"))
		assert.True(t, strings.HasSuffix(calls[i].Last(), name+".m3u8"))
		assert.Equal(t, "aac", calls[i].Arg("-c:a"))
	}
}

func TestPackage_NoAudio(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 30})}

	_, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{
		Source: "in.mp4", OutputDir: t.TempDir(), NoAudio: true, SegmentDuration: 6,
	})
	require.NoError(t, err)
	call := fake.Calls()[0]
	assert.Contains(t, call.Args, "-an")
	assert.Equal(t, "6", call.Arg("-hls_time"))
}

func TestPackage_VariantFailureWritesNoMaster(t *testing.T) {
	media := runnertest.Media(runnertest.Source{Duration: 30})
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		if strings.HasSuffix(call.Last(), "720p.m3u8") {
			return runnertest.Fail(call.Name, 1, "Error while opening encoder for output stream #0:0")
		}
		return media(ctx, call)
	}}
	dir := t.TempDir()

	bundle, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{Source: "in.mp4", OutputDir: dir})
	require.Error(t, err)
	assert.Nil(t, bundle)

	var f *domain.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, domain.KindPlaylist, f.Kind)
	assert.Equal(t, "720p", f.Op)
	assert.Contains(t, err.Error(), "Error while opening encoder")

	_, statErr := os.Stat(filepath.Join(dir, "master.m3u8"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Len(t, fake.Calls(), 2)
}

func TestPackage_MissingSegmentFails(t *testing.T) {
	media := runnertest.Media(runnertest.Source{Duration: 30})
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		res, err := media(ctx, call)
		if err == nil && strings.HasSuffix(call.Last(), "480p.m3u8") {
			os.Remove(filepath.Join(filepath.Dir(call.Last()), segment.Name("480p", 1)))
		}
		return res, err
	}}
	dir := t.TempDir()

	_, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{Source: "in.mp4", OutputDir: dir})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPlaylist))

	_, statErr := os.Stat(filepath.Join(dir, "master.m3u8"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPackage_InvalidLadder(t *testing.T) {
	fake := &runnertest.Fake{}
	_, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{
		Source: "in.mp4", OutputDir: t.TempDir(),
		Ladder: []domain.QualityLevel{{Name: "x", Width: 0, Height: 0, BitrateKbps: 1}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPlaylist))
	assert.Empty(t, fake.Calls())
}

func TestPackage_Cancelled(t *testing.T) {
	fake := &runnertest.Fake{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPackager(fake, tools, nil).Package(ctx, Request{Source: "in.mp4", OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestPackage_RepackagesIntoSameDirectory(t *testing.T) {
	fake := &runnertest.Fake{Handler: runnertest.Media(runnertest.Source{Duration: 30})}
	dir := t.TempDir()
	p := NewPackager(fake, tools, nil)

	first, err := p.Package(context.Background(), Request{Source: "in.mp4", OutputDir: dir, SegmentDuration: 5})
	require.NoError(t, err)
	require.Len(t, first.Variants[0].Segments, 6)

	second, err := p.Package(context.Background(), Request{Source: "in.mp4", OutputDir: dir, SegmentDuration: 10})
	require.NoError(t, err)
	for _, v := range second.Variants {
		assert.Len(t, v.Segments, 3, v.Level.Name)
		onDisk, err := segment.OnDisk(dir, v.Level.Name)
		require.NoError(t, err)
		assert.Equal(t, v.Segments, onDisk)
	}
}

func TestPackage_FailedRerunLeavesNoStaleMaster(t *testing.T) {
	media := runnertest.Media(runnertest.Source{Duration: 30})
	fail := false
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		if fail && strings.HasSuffix(call.Last(), "1080p.m3u8") {
			return runnertest.Fail(call.Name, 1, "Conversion failed!")
		}
		return media(ctx, call)
	}}
	dir := t.TempDir()
	p := NewPackager(fake, tools, nil)

	_, err := p.Package(context.Background(), Request{Source: "in.mp4", OutputDir: dir})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "master.m3u8"))

	fail = true
	_, err = p.Package(context.Background(), Request{Source: "in.mp4", OutputDir: dir})
	require.Error(t, err)
	assert.Equal(t, "playlist failure: 1080p: ffmpeg exited with code 1: Conversion failed!", err.Error())
	assert.NoFileExists(t, filepath.Join(dir, "master.m3u8"))
}

func TestPackage_ExtraSegmentErrorNamesLevelOnce(t *testing.T) {
	media := runnertest.Media(runnertest.Source{Duration: 30})
	fake := &runnertest.Fake{Handler: func(ctx context.Context, call runnertest.Call) (domain.Result, error) {
		res, err := media(ctx, call)
		if err == nil && strings.HasSuffix(call.Last(), "480p.m3u8") {
			require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(call.Last()), segment.Name("480p", 7)), []byte("ts"), 0o644))
		}
		return res, err
	}}

	_, err := NewPackager(fake, tools, nil).Package(context.Background(), Request{Source: "in.mp4", OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPlaylist))
	assert.Equal(t, 1, strings.Count(err.Error(), "480p:"))
}
