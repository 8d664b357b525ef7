package hls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/ffmpeg"
	"github.com/eleven-am/govod/internal/playlist"
	"github.com/eleven-am/govod/internal/rendition"
	"github.com/eleven-am/govod/internal/segment"
)

const DefaultSegmentDuration = 10

type Request struct {
	Source          string
	OutputDir       string
	SegmentDuration int
	Ladder          []domain.QualityLevel
	NoAudio         bool
}

type Packager struct {
	runner   domain.Runner
	builder  *ffmpeg.CommandBuilder
	defaults domain.Tools
	logger   hclog.Logger
}

func NewPackager(runner domain.Runner, tools domain.Tools, logger hclog.Logger) *Packager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Packager{
		runner:   runner,
		builder:  ffmpeg.NewCommandBuilder(),
		defaults: tools,
		logger:   logger.Named("hls"),
	}
}

// Package encodes and segments every ladder level in order, then writes the
// master playlist. master.m3u8 is only written once every variant succeeded;
// a master or segments left in OutputDir by an earlier run are removed first.
func (p *Packager) Package(ctx context.Context, req Request) (*domain.HLSBundle, error) {
	ladder := req.Ladder
	if len(ladder) == 0 {
		ladder = rendition.DefaultLadder()
	}
	if err := rendition.ValidateLadder(ladder); err != nil {
		return nil, domain.NewFailure(domain.KindPlaylist, "ladder", err)
	}

	segDuration := req.SegmentDuration
	if segDuration <= 0 {
		segDuration = DefaultSegmentDuration
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, domain.NewFailure(domain.KindPlaylist, "output dir", err)
	}

	masterPath := filepath.Join(req.OutputDir, playlist.MasterName)
	if err := os.Remove(masterPath); err != nil && !os.IsNotExist(err) {
		return nil, domain.NewFailure(domain.KindPlaylist, playlist.MasterName, err)
	}

	tools := domain.ResolveTools(ctx, p.defaults)
	master := playlist.NewMasterBuilder()
	bundle := &domain.HLSBundle{Dir: req.OutputDir}

	for _, level := range ladder {
		variant, err := p.variant(ctx, tools, req, level, segDuration)
		if err != nil {
			p.logger.Warn("packaging aborted", "level", level.Name, "error", err)
			return nil, domain.NewFailure(domain.KindPlaylist, level.Name, err)
		}

		master.Add(level, filepath.Base(variant.PlaylistPath))
		bundle.Variants = append(bundle.Variants, *variant)
		p.logger.Debug("variant packaged", "level", level.Name, "segments", len(variant.Segments))
	}

	bundle.Master = master.String()
	bundle.MasterPath = masterPath
	if err := writeFileAtomic(bundle.MasterPath, []byte(bundle.Master)); err != nil {
		return nil, domain.NewFailure(domain.KindPlaylist, playlist.MasterName, err)
	}

	return bundle, nil
}

func (p *Packager) variant(ctx context.Context, tools domain.Tools, req Request, level domain.QualityLevel, segDuration int) (*domain.Variant, error) {
	if err := segment.Clean(req.OutputDir, level.Name); err != nil {
		return nil, fmt.Errorf("remove stale segments: %w", err)
	}

	args := p.builder.HLSVariant(ffmpeg.HLSVariantParams{
		Input:           req.Source,
		OutputDir:       req.OutputDir,
		Level:           level,
		SegmentDuration: segDuration,
		NoAudio:         req.NoAudio,
	})
	if _, err := p.runner.Run(ctx, tools.FFmpeg, args...); err != nil {
		return nil, err
	}

	playlistPath := filepath.Join(req.OutputDir, ffmpeg.VariantPlaylistName(level.Name))
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		return nil, fmt.Errorf("read variant playlist: %w", err)
	}

	segments, err := playlist.ParseVariant(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(playlistPath), err)
	}
	if err := segment.Verify(req.OutputDir, level.Name, segments); err != nil {
		return nil, err
	}

	names := make([]string, len(segments))
	for i, s := range segments {
		names[i] = s.URI
	}
	return &domain.Variant{Level: level, PlaylistPath: playlistPath, Segments: names}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".master-*.m3u8")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
