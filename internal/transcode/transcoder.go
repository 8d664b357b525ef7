package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/ffmpeg"
	"github.com/eleven-am/govod/internal/rendition"
)

type Transcoder struct {
	runner      domain.Runner
	builder     *ffmpeg.CommandBuilder
	defaults    domain.Tools
	logger      hclog.Logger
	parallelism int
}

func NewTranscoder(runner domain.Runner, tools domain.Tools, logger hclog.Logger) *Transcoder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Transcoder{
		runner:      runner,
		builder:     ffmpeg.NewCommandBuilder(),
		defaults:    tools,
		logger:      logger.Named("transcode"),
		parallelism: 1,
	}
}

// SetParallelism bounds how many ladder levels of one asset encode at once.
func (t *Transcoder) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	t.parallelism = n
}

func (t *Transcoder) Convert(ctx context.Context, src, output string, spec domain.ConversionSpec) (domain.Rendition, error) {
	tier, err := rendition.ParseTier(string(spec.Quality))
	if err != nil {
		return domain.Rendition{}, domain.NewFailure(domain.KindEncode, string(spec.Quality), err)
	}
	spec.Quality = tier
	label := string(tier)
	if err := t.convert(ctx, src, output, spec); err != nil {
		return domain.Rendition{}, domain.NewFailure(domain.KindEncode, label, err)
	}
	return domain.Rendition{
		Label:       label,
		Resolution:  spec.Resolution,
		BitrateKbps: spec.BitrateKbps,
		Path:        output,
	}, nil
}

func (t *Transcoder) convert(ctx context.Context, src, output string, spec domain.ConversionSpec) error {
	args, err := t.builder.Convert(ffmpeg.ConvertParams{
		Input:  src,
		Output: output,
		Spec:   spec,
		CRF:    rendition.CRF(spec.Quality),
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}

	tools := domain.ResolveTools(ctx, t.defaults)
	if _, err := t.runner.Run(ctx, tools.FFmpeg, args...); err != nil {
		return err
	}
	return nil
}

// Ladder encodes one rendition per level into outDir and maps level names to
// output paths. The first failure cancels the remaining levels and no mapping
// is returned.
func (t *Transcoder) Ladder(ctx context.Context, src, outDir string, ladder []domain.QualityLevel, base domain.ConversionSpec) (map[string]string, error) {
	if err := rendition.ValidateLadder(ladder); err != nil {
		return nil, domain.NewFailure(domain.KindEncode, "ladder", err)
	}

	format := base.Format
	if format == "" {
		format = ffmpeg.DefaultFormat
	}

	var mu sync.Mutex
	outputs := make(map[string]string, len(ladder))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallelism)

	for _, level := range ladder {
		level := level
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &domain.CancelledError{Command: "ladder " + level.Name, Cause: err}
			}

			spec := base
			spec.Format = format
			spec.Resolution = level.Resolution()
			spec.BitrateKbps = level.BitrateKbps

			out := filepath.Join(outDir, fmt.Sprintf("%s.%s", level.Name, format))
			t.logger.Debug("encoding rendition", "level", level.Name, "output", out)
			if err := t.convert(gctx, src, out, spec); err != nil {
				return domain.NewFailure(domain.KindEncode, level.Name, err)
			}

			mu.Lock()
			outputs[level.Name] = out
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.logger.Warn("ladder aborted", "source", src, "error", err)
		return nil, err
	}
	return outputs, nil
}

func (t *Transcoder) ExtractAudio(ctx context.Context, src, output, codec string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", domain.NewFailure(domain.KindAudio, output, err)
	}

	tools := domain.ResolveTools(ctx, t.defaults)
	args := t.builder.ExtractAudio(ffmpeg.AudioParams{Input: src, Output: output, Codec: codec})
	if _, err := t.runner.Run(ctx, tools.FFmpeg, args...); err != nil {
		return "", domain.NewFailure(domain.KindAudio, filepath.Base(output), err)
	}
	return output, nil
}

func (t *Transcoder) CompressForWeb(ctx context.Context, src, output string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", domain.NewFailure(domain.KindCompress, output, err)
	}

	tools := domain.ResolveTools(ctx, t.defaults)
	if _, err := t.runner.Run(ctx, tools.FFmpeg, t.builder.WebCompress(src, output)...); err != nil {
		return "", domain.NewFailure(domain.KindCompress, filepath.Base(output), err)
	}
	return output, nil
}
