package thumbnail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/ffmpeg"
)

type Prober interface {
	Probe(ctx context.Context, path string) (*domain.VideoMetadata, error)
}

type Generator struct {
	runner   domain.Runner
	prober   Prober
	builder  *ffmpeg.CommandBuilder
	defaults domain.Tools
	logger   hclog.Logger

	storyboard StoryboardConfig
}

func NewGenerator(runner domain.Runner, prober Prober, tools domain.Tools, logger hclog.Logger) *Generator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Generator{
		runner:     runner,
		prober:     prober,
		builder:    ffmpeg.NewCommandBuilder(),
		defaults:   tools,
		logger:     logger.Named("thumbnail"),
		storyboard: DefaultStoryboardConfig(),
	}
}

// Offsets spaces count timestamps evenly inside duration, excluding both ends.
func Offsets(duration float64, count int) []float64 {
	if count <= 0 || duration <= 0 {
		return nil
	}
	interval := duration / float64(count+1)
	offsets := make([]float64, count)
	for i := range offsets {
		offsets[i] = interval * float64(i+1)
	}
	return offsets
}

// Single extracts one frame of src into output. An OffsetAuto request seeks to
// the middle of the source.
func (g *Generator) Single(ctx context.Context, src, output string, req domain.ThumbnailRequest) (string, error) {
	req = withDefaults(req)
	if req.Offset < 0 {
		meta, err := g.prober.Probe(ctx, src)
		if err != nil {
			return "", domain.NewFailure(domain.KindThumbnail, output, err)
		}
		req.Offset = meta.Duration / 2
	}
	if err := g.extract(ctx, src, output, req); err != nil {
		return "", err
	}
	return output, nil
}

// Multiple writes count thumbnails named thumb_001.jpg onwards into outDir.
// Any failed extraction fails the whole call.
func (g *Generator) Multiple(ctx context.Context, src, outDir string, count int, req domain.ThumbnailRequest) ([]string, error) {
	if count <= 0 {
		return nil, domain.NewFailure(domain.KindThumbnail, "", fmt.Errorf("thumbnail count must be positive, got %d", count))
	}

	meta, err := g.prober.Probe(ctx, src)
	if err != nil {
		return nil, domain.NewFailure(domain.KindThumbnail, "probe", err)
	}

	req = withDefaults(req)
	offsets := Offsets(meta.Duration, count)
	if len(offsets) == 0 {
		return nil, domain.NewFailure(domain.KindThumbnail, "", fmt.Errorf("source has no duration"))
	}

	paths := make([]string, 0, count)
	for i, offset := range offsets {
		out := filepath.Join(outDir, Name(i+1))
		req.Offset = offset
		if err := g.extract(ctx, src, out, req); err != nil {
			return nil, err
		}
		paths = append(paths, out)
	}

	g.logger.Debug("generated thumbnails", "source", src, "count", len(paths))
	return paths, nil
}

func Name(n int) string {
	return fmt.Sprintf("thumb_%03d.jpg", n)
}

func (g *Generator) extract(ctx context.Context, src, output string, req domain.ThumbnailRequest) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return domain.NewFailure(domain.KindThumbnail, output, err)
	}

	tools := domain.ResolveTools(ctx, g.defaults)
	args := g.builder.Thumbnail(ffmpeg.ThumbnailParams{
		Input:   src,
		Output:  output,
		Offset:  req.Offset,
		Width:   req.Width,
		Height:  req.Height,
		Quality: req.Quality,
	})
	if _, err := g.runner.Run(ctx, tools.FFmpeg, args...); err != nil {
		return domain.NewFailure(domain.KindThumbnail, fmt.Sprintf("%s at %.3fs", filepath.Base(output), req.Offset), err)
	}
	return nil
}

func withDefaults(req domain.ThumbnailRequest) domain.ThumbnailRequest {
	def := domain.DefaultThumbnailRequest()
	if req.Width <= 0 {
		req.Width = def.Width
	}
	if req.Height <= 0 {
		req.Height = def.Height
	}
	if req.Quality < 1 || req.Quality > 31 {
		req.Quality = def.Quality
	}
	return req
}
