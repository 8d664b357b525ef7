// Command govod ingests video files: it validates each input, then writes
// thumbnails, a rendition ladder and an HLS bundle under -output/<asset>.
//
//	govod -config govod.yaml -output /srv/media upload1.mp4 upload2.mov
//
// One JSON result per input is printed to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eleven-am/govod"
	"github.com/eleven-am/govod/internal/config"
	"github.com/eleven-am/govod/internal/hash"
	"github.com/eleven-am/govod/internal/logging"
)

type output struct {
	Source string              `json:"source"`
	JobID  string              `json:"jobId,omitempty"`
	Result *govod.IngestResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "path to a YAML config file")
		envFile     = flag.String("env", ".env", "dotenv file loaded before the config")
		outputDir   = flag.String("output", "output", "directory receiving one subdirectory per asset")
		thumbnails  = flag.Int("thumbnails", -1, "thumbnails per asset; -1 uses the configured count")
		skipLadder  = flag.Bool("skip-ladder", false, "do not encode standalone renditions")
		skipHLS     = flag.Bool("skip-hls", false, "do not package HLS")
		metricsFile = flag.String("metrics-file", "", "write Prometheus metrics to this file on exit")
		preflight   = flag.Bool("preflight", true, "check ffmpeg encoders before ingesting")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger := logging.New("govod", cfg.Logging)

	if flag.NArg() == 0 {
		logger.Error("no input files given")
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index, closeIndex, err := dedupIndex(ctx, cfg, logger)
	if err != nil {
		logger.Error("dedup index unavailable", "error", err)
		return 1
	}
	defer closeIndex()

	reg := prometheus.NewRegistry()
	pipeline := govod.NewPipeline(govod.Options{
		Tools:                cfg.ToolPaths(),
		Timeout:              cfg.Runner.Timeout,
		GracePeriod:          cfg.Runner.GracePeriod,
		StderrLimit:          cfg.Runner.StderrLimit,
		Policy:               cfg.Policy,
		Ladder:               cfg.Ladder,
		FitLadderToSource:    cfg.Pool.FitLadderToSource,
		SegmentDuration:      cfg.HLS.SegmentDuration,
		Thumbnail:            cfg.ThumbnailRequest(),
		Storyboard:           cfg.Storyboard,
		Concurrency:          cfg.Pool.Concurrency,
		QueueSize:            cfg.Pool.Queue,
		RenditionParallelism: cfg.Pool.RenditionParallelism,
		DedupIndex:           index,
		Logger:               logger,
		Registerer:           reg,
	})

	if *preflight {
		caps, err := pipeline.Preflight(ctx)
		if err != nil {
			logger.Error("preflight failed", "error", err)
			return 1
		}
		logger.Debug("ffmpeg capabilities", "encoders", len(caps.Encoders), "hwaccels", caps.HWAccels)
	}

	if err := pipeline.Start(ctx); err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer pipeline.Stop()

	count := cfg.Thumbnails.Count
	if *thumbnails >= 0 {
		count = *thumbnails
	}

	type pending struct {
		source  string
		jobID   string
		results <-chan govod.JobResult
	}
	var jobs []pending
	var outputs []output

	for _, src := range flag.Args() {
		asset := assetID(src)
		id, results, err := pipeline.Submit(ctx, govod.IngestRequest{
			AssetID:        asset,
			SourcePath:     src,
			OutputDir:      filepath.Join(*outputDir, asset),
			ThumbnailCount: count,
			SkipLadder:     *skipLadder,
			SkipHLS:        *skipHLS,
		})
		if err != nil {
			outputs = append(outputs, output{Source: src, Error: err.Error()})
			continue
		}
		logger.Info("queued", "source", src, "job_id", id, "asset_id", asset)
		jobs = append(jobs, pending{source: src, jobID: id, results: results})
	}

	for _, job := range jobs {
		res := <-job.results
		out := output{Source: job.source, JobID: job.jobID, Result: res.Result}
		if res.Err != nil {
			out.Error = res.Err.Error()
		} else if res.Result != nil && !res.Result.Validation.IsValid {
			out.Error = "rejected: " + res.Result.Validation.Error()
		}
		outputs = append(outputs, out)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := 0
	for _, out := range outputs {
		if out.Error != "" {
			failed++
		}
		if err := enc.Encode(out); err != nil {
			logger.Error("write result", "error", err)
		}
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			logger.Warn("write metrics", "path", *metricsFile, "error", err)
		}
	}

	if failed > 0 {
		logger.Warn("some inputs failed", "failed", failed, "total", len(outputs))
		return 1
	}
	return 0
}

func dedupIndex(ctx context.Context, cfg *config.Config, logger hclog.Logger) (govod.DedupIndex, func(), error) {
	if cfg.Dedup.Redis.Addr == "" {
		return hash.NewMemoryIndex(), func() {}, nil
	}
	index, err := hash.NewRedisIndex(cfg.Dedup.Redis)
	if err != nil {
		return nil, nil, err
	}
	if err := index.Ping(ctx); err != nil {
		_ = index.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Dedup.Redis.Addr, err)
	}
	logger.Info("using redis dedup index", "addr", cfg.Dedup.Redis.Addr)
	return index, func() { _ = index.Close() }, nil
}

// assetID derives a directory-safe asset name from the source file name.
func assetID(src string) string {
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
