// Package govod turns an uploaded video file into streamable assets.
//
// A Pipeline probes and validates a source with ffprobe, then drives ffmpeg to
// produce preview thumbnails, a ladder of re-encoded renditions, and an HLS
// adaptive-bitrate bundle (master playlist, one variant playlist per quality,
// and .ts segments). Every stage is a blocking call that honours its context:
// cancelling the context interrupts the running ffmpeg process and the stage
// returns an error matching ErrCancelled.
//
// # Basic Usage
//
//	p := govod.NewPipeline(govod.Options{
//	    Tools:   govod.Tools{FFmpeg: "/usr/bin/ffmpeg", FFprobe: "/usr/bin/ffprobe"},
//	    Timeout: 2 * time.Hour,
//	})
//
//	result, err := p.Ingest(ctx, govod.IngestRequest{
//	    SourcePath:     "/staging/upload.mp4",
//	    OutputDir:      "/out/asset-42",
//	    ThumbnailCount: 5,
//	})
//
// # Ingest Workflow
//
// Ingest runs one asset through the whole pipeline:
//
//  1. The source is probed and checked against the validation Policy. A
//     rejected source is reported in IngestResult.Validation, not as an error.
//  2. Thumbnails and the quality ladder are produced concurrently.
//  3. The HLS bundle is packaged once both have finished.
//
// The content digest is computed alongside and never gates the other stages.
//
// # Failures
//
// Multi-output stages are all-or-nothing. A failed ladder returns no mapping
// and a failed HLS package writes no master playlist, although partially
// written files may remain in the output directory. Callers should treat the
// output directory of a failed call as untrusted.
//
// # Worker Pool
//
// Start launches a bounded pool that ingests whole assets in parallel; Submit
// queues work on it. Renditions of a single asset stay serialised unless
// RenditionParallelism is raised.
package govod

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/encoders"
	"github.com/eleven-am/govod/internal/estimate"
	"github.com/eleven-am/govod/internal/hash"
	"github.com/eleven-am/govod/internal/hls"
	"github.com/eleven-am/govod/internal/metrics"
	"github.com/eleven-am/govod/internal/probe"
	"github.com/eleven-am/govod/internal/rendition"
	"github.com/eleven-am/govod/internal/runner"
	"github.com/eleven-am/govod/internal/thumbnail"
	"github.com/eleven-am/govod/internal/transcode"
	"github.com/eleven-am/govod/internal/validate"
)

type (
	// VideoMetadata is the technical description of a probed source.
	VideoMetadata = domain.VideoMetadata

	// ValidationResult reports whether a source satisfies the Policy. A failed
	// probe is recorded in Err rather than returned.
	ValidationResult = domain.ValidationResult

	// ConstraintViolation names one policy bound a source breached.
	ConstraintViolation = domain.ConstraintViolation

	// Policy bounds the sources the pipeline accepts. All bounds are inclusive.
	Policy = validate.Policy

	// ThumbnailRequest controls a single frame extraction. Offset OffsetAuto
	// seeks to the middle of the source.
	ThumbnailRequest = domain.ThumbnailRequest

	// ConversionSpec describes a single re-encode. Quality selects the
	// constant rate factor: low 28, medium 23, high 18, ultra 15.
	ConversionSpec = domain.ConversionSpec

	// Rendition is the output of ConvertVideo.
	Rendition = domain.Rendition

	// Tier is a named quality preset.
	Tier = domain.Tier

	// QualityLevel is one rung of a quality ladder.
	QualityLevel = domain.QualityLevel

	// HLSBundle describes a packaged HLS output directory.
	HLSBundle = domain.HLSBundle

	// Storyboard lists seek-preview sprite sheets and their WebVTT index.
	Storyboard = thumbnail.Storyboard

	// StoryboardConfig sizes storyboard tiles and sheets.
	StoryboardConfig = thumbnail.StoryboardConfig

	// Tools holds the ffmpeg and ffprobe executables to invoke.
	Tools = domain.Tools

	// Runner executes external commands. Tests substitute a scripted fake.
	Runner = domain.Runner

	// DedupIndex remembers which asset first produced a content digest.
	DedupIndex = domain.DedupIndex

	// DedupResult reports the digest of a source and any earlier owner.
	DedupResult = domain.DedupResult

	// OperationKind selects the multiplier used by EstimateProcessingTime.
	OperationKind = domain.OperationKind

	// IngestRequest describes one asset to run through Ingest.
	IngestRequest = domain.IngestRequest

	// IngestResult collects everything Ingest produced for an asset.
	IngestResult = domain.IngestResult

	// JobResult is delivered once per submitted job.
	JobResult = domain.JobResult

	// Capabilities lists the encoders and hardware accelerators ffmpeg offers.
	Capabilities = encoders.Capabilities

	// Failure is a fatal stage error; Kind names the stage.
	Failure = domain.Failure

	// FailureKind identifies the stage a Failure came from.
	FailureKind = domain.FailureKind

	// ProcessError is a nonzero exit. Stderr holds the captured error output.
	ProcessError = domain.ProcessError

	// ProcessSpawnError means the executable could not be started at all.
	ProcessSpawnError = domain.ProcessSpawnError

	// CancelledError means the context ended while a process was running.
	CancelledError = domain.CancelledError

	// ProbeParseError means ffprobe output could not be interpreted.
	ProbeParseError = domain.ProbeParseError

	// NoVideoStreamError means the source has no usable video stream.
	NoVideoStreamError = domain.NoVideoStreamError
)

const (
	TierLow    = domain.TierLow
	TierMedium = domain.TierMedium
	TierHigh   = domain.TierHigh
	TierUltra  = domain.TierUltra

	OpThumbnail = domain.OpThumbnail
	OpConvert   = domain.OpConvert
	OpHLS       = domain.OpHLS
	OpCompress  = domain.OpCompress
	OpAudio     = domain.OpAudio

	KindThumbnail = domain.KindThumbnail
	KindEncode    = domain.KindEncode
	KindPlaylist  = domain.KindPlaylist
	KindHash      = domain.KindHash
	KindAudio     = domain.KindAudio
	KindCompress  = domain.KindCompress

	// OffsetAuto asks for a thumbnail from the middle of the source.
	OffsetAuto = domain.OffsetAuto
)

// ErrCancelled matches every error caused by context cancellation or timeout.
var ErrCancelled = domain.ErrCancelled

// WithTools overrides the configured tool paths for every stage called with
// the returned context. Empty fields keep the configured value.
func WithTools(ctx context.Context, tools Tools) context.Context {
	return domain.WithTools(ctx, tools)
}

// IsKind reports whether err is a Failure from the given stage.
func IsKind(err error, kind FailureKind) bool {
	return domain.IsKind(err, kind)
}

// DefaultLadder returns 480p/1000k, 720p/2500k and 1080p/5000k.
func DefaultLadder() []QualityLevel {
	return rendition.DefaultLadder()
}

// DefaultPolicy accepts 30s to 4h, at most 5 GiB, at least 480x360.
func DefaultPolicy() Policy {
	return validate.DefaultPolicy()
}

// Options configures a Pipeline. Every field is optional.
type Options struct {
	// Tools locates ffmpeg and ffprobe.
	// Default: "ffmpeg" and "ffprobe" resolved through PATH.
	Tools Tools

	// Runner executes commands. Default: a process runner built from
	// Timeout, GracePeriod and StderrLimit.
	Runner Runner

	// Timeout bounds each external process. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration

	// GracePeriod is how long an interrupted process may take to exit
	// before it is killed. Default: 5 seconds.
	GracePeriod time.Duration

	// StderrLimit caps the stderr bytes kept per process; the tail is kept.
	// Default: 64 KiB.
	StderrLimit int

	// Policy bounds accepted sources. Default: DefaultPolicy.
	Policy Policy

	// Ladder is the rendition ladder for Ingest, GenerateMultipleQualities and
	// GenerateHLSPlaylist when none is passed. Default: DefaultLadder.
	Ladder []QualityLevel

	// FitLadderToSource drops ladder levels taller than the source during
	// Ingest instead of upscaling.
	FitLadderToSource bool

	// SegmentDuration is the HLS segment length in seconds. Default: 10.
	SegmentDuration int

	// Thumbnail shapes thumbnails produced by Ingest and
	// GenerateMultipleThumbnails. Default: 640x360, quality 2.
	Thumbnail ThumbnailRequest

	// Storyboard sizes storyboard sprite sheets.
	Storyboard StoryboardConfig

	// Concurrency is the number of assets the worker pool ingests at once.
	// Default: 1.
	Concurrency int

	// QueueSize is how many submitted jobs may wait for a worker. Default: 16.
	QueueSize int

	// RenditionParallelism bounds concurrent ladder encodes for one asset.
	// Default: 1.
	RenditionParallelism int

	// DedupIndex records content digests. Default: an in-memory index.
	DedupIndex DedupIndex

	// Logger receives pipeline logs. Default: discard.
	Logger hclog.Logger

	// Registerer receives the pipeline's Prometheus collectors.
	// Default: a private registry.
	Registerer prometheus.Registerer
}

func (o *Options) setDefaults() {
	if o.Tools.FFmpeg == "" {
		o.Tools.FFmpeg = "ffmpeg"
	}
	if o.Tools.FFprobe == "" {
		o.Tools.FFprobe = "ffprobe"
	}
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	if o.Runner == nil {
		o.Runner = runner.New(runner.Options{
			Timeout:     o.Timeout,
			GracePeriod: o.GracePeriod,
			StderrLimit: o.StderrLimit,
			Logger:      o.Logger.Named("runner"),
		})
	}
	if o.Policy == (Policy{}) {
		o.Policy = validate.DefaultPolicy()
	}
	if len(o.Ladder) == 0 {
		o.Ladder = rendition.DefaultLadder()
	}
	if o.SegmentDuration <= 0 {
		o.SegmentDuration = hls.DefaultSegmentDuration
	}
	if o.Thumbnail == (ThumbnailRequest{}) {
		o.Thumbnail = domain.DefaultThumbnailRequest()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 16
	}
	if o.RenditionParallelism <= 0 {
		o.RenditionParallelism = 1
	}
	if o.DedupIndex == nil {
		o.DedupIndex = hash.NewMemoryIndex()
	}
}

func (o *Options) validate() {
	if err := rendition.ValidateLadder(o.Ladder); err != nil {
		panic(fmt.Sprintf("govod: invalid Ladder: %v", err))
	}
	if o.Policy.MinDuration > o.Policy.MaxDuration {
		panic("govod: Policy.MinDuration exceeds Policy.MaxDuration")
	}
}

// Pipeline is the entry point for media ingestion. All methods are safe for
// concurrent use; no state is shared between calls beyond the dedup index.
//
// Start and Stop are only needed for Submit. The single-stage methods and
// Ingest can be called directly.
type Pipeline struct {
	opts       Options
	logger     hclog.Logger
	metrics    *metrics.Metrics
	prober     *probe.Prober
	validator  *validate.Validator
	hasher     *hash.Hasher
	thumbnails *thumbnail.Generator
	transcoder *transcode.Transcoder
	packager   *hls.Packager
	pool       *transcode.Pool
}

// NewPipeline creates a Pipeline. It panics if Ladder violates the ladder
// rules (unique names, positive sizes, bitrate non-decreasing with resolution).
func NewPipeline(opts Options) *Pipeline {
	opts.setDefaults()
	opts.validate()

	logger := opts.Logger
	prober := probe.NewProber(opts.Runner, opts.Tools, logger.Named("probe"))

	thumbs := thumbnail.NewGenerator(opts.Runner, prober, opts.Tools, logger)
	thumbs.SetStoryboardConfig(opts.Storyboard)

	transcoder := transcode.NewTranscoder(opts.Runner, opts.Tools, logger)
	transcoder.SetParallelism(opts.RenditionParallelism)

	p := &Pipeline{
		opts:       opts,
		logger:     logger,
		metrics:    metrics.New(opts.Registerer),
		prober:     prober,
		validator:  validate.NewValidator(prober, opts.Policy, logger.Named("validate")),
		hasher:     hash.NewHasher(logger.Named("hash")),
		thumbnails: thumbs,
		transcoder: transcoder,
		packager:   hls.NewPackager(opts.Runner, opts.Tools, logger),
	}
	p.pool = transcode.NewPool(opts.Concurrency, opts.QueueSize, p.process, logger)
	return p
}

// Start launches the asset worker pool used by Submit. The context bounds the
// lifetime of the workers; cancelling it stops them.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.pool.Start(ctx); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}
	return nil
}

// Stop cancels in-flight jobs and waits for the workers to exit. Jobs still
// queued receive a result with a pool-stopped error.
func (p *Pipeline) Stop() {
	p.pool.Stop()
}

// Submit queues req on the worker pool and returns the job ID together with a
// channel that receives exactly one JobResult. It blocks while the queue is
// full. An empty AssetID defaults to the job ID.
func (p *Pipeline) Submit(ctx context.Context, req IngestRequest) (string, <-chan JobResult, error) {
	return p.pool.Submit(ctx, req)
}

func (p *Pipeline) process(ctx context.Context, job domain.Job) (*domain.IngestResult, error) {
	req := job.Request
	if req.AssetID == "" {
		req.AssetID = job.ID
	}
	return p.Ingest(ctx, req)
}

// Preflight checks that ffmpeg is runnable and offers every encoder the
// pipeline uses.
func (p *Pipeline) Preflight(ctx context.Context) (*Capabilities, error) {
	tools := domain.ResolveTools(ctx, p.opts.Tools)
	caps, err := encoders.Detect(ctx, p.opts.Runner, tools.FFmpeg)
	if err != nil {
		return nil, err
	}
	if missing := caps.Missing(encoders.Required...); len(missing) > 0 {
		return caps, fmt.Errorf("ffmpeg is missing encoders: %v", missing)
	}
	return caps, nil
}

// ProbeVideo reads the technical metadata of the file at path.
//
// Errors are a *NoVideoStreamError when the file has no video stream, a
// *ProbeParseError when ffprobe output cannot be interpreted, or the
// underlying process error.
func (p *Pipeline) ProbeVideo(ctx context.Context, path string) (*VideoMetadata, error) {
	start := time.Now()
	meta, err := p.prober.Probe(ctx, path)
	p.metrics.Observe("probe", start, err)
	return meta, err
}

// ValidateVideoFile probes path and applies the Policy. It never returns an
// error: probe failures come back with IsValid false and Err set.
func (p *Pipeline) ValidateVideoFile(ctx context.Context, path string) ValidationResult {
	start := time.Now()
	result := p.validator.ValidateFile(ctx, path)
	p.metrics.Observe("validate", start, result.Err)
	if !result.IsValid {
		p.metrics.Rejected.Inc()
	}
	return result
}

// HashFile returns the hex BLAKE2b-256 digest of the file. Identical content
// always yields the same digest.
func (p *Pipeline) HashFile(ctx context.Context, path string) (string, error) {
	start := time.Now()
	digest, err := p.hasher.HashFile(ctx, path)
	p.metrics.Observe("hash", start, err)
	return digest, err
}

// CheckDuplicate hashes path and records the digest against assetID in the
// dedup index. If another asset recorded the same digest first, the result
// names it in DuplicateOf.
func (p *Pipeline) CheckDuplicate(ctx context.Context, path, assetID string) (DedupResult, error) {
	start := time.Now()
	result, err := hash.Check(ctx, p.hasher, p.opts.DedupIndex, path, assetID)
	p.metrics.Observe("dedup", start, err)
	if result.Duplicate {
		p.metrics.Duplicates.Inc()
	}
	return result, err
}

func (p *Pipeline) claimDigest(ctx context.Context, digest, assetID string) (DedupResult, error) {
	start := time.Now()
	result, err := hash.Claim(ctx, p.opts.DedupIndex, digest, assetID)
	p.metrics.Observe("dedup", start, err)
	if result.Duplicate {
		p.metrics.Duplicates.Inc()
	}
	return result, err
}

// GenerateThumbnail extracts one frame of src to output.
func (p *Pipeline) GenerateThumbnail(ctx context.Context, src, output string, req ThumbnailRequest) (string, error) {
	start := time.Now()
	path, err := p.thumbnails.Single(ctx, src, output, req)
	p.metrics.Observe("thumbnail", start, err)
	return path, err
}

// GenerateMultipleThumbnails writes count evenly spaced thumbnails of src into
// outDir. With duration d the frames are taken at d/(count+1) intervals, so
// neither the first nor the last frame of the source is used.
//
// If any extraction fails no paths are returned.
func (p *Pipeline) GenerateMultipleThumbnails(ctx context.Context, src, outDir string, count int) ([]string, error) {
	start := time.Now()
	paths, err := p.thumbnails.Multiple(ctx, src, outDir, count, p.opts.Thumbnail)
	p.metrics.Observe("thumbnails", start, err)
	return paths, err
}

// GenerateStoryboard renders seek-preview sprite sheets and a WebVTT index
// for src into outDir.
func (p *Pipeline) GenerateStoryboard(ctx context.Context, src, outDir string) (*Storyboard, error) {
	start := time.Now()
	sb, err := p.thumbnails.Storyboard(ctx, src, outDir)
	p.metrics.Observe("storyboard", start, err)
	return sb, err
}

// ConvertVideo re-encodes src to output according to spec.
func (p *Pipeline) ConvertVideo(ctx context.Context, src, output string, spec ConversionSpec) (Rendition, error) {
	start := time.Now()
	r, err := p.transcoder.Convert(ctx, src, output, spec)
	p.metrics.Observe("convert", start, err)
	return r, err
}

// GenerateMultipleQualities encodes one rendition per ladder level into outDir
// and maps level names to output paths. A nil ladder uses Options.Ladder.
//
// The mapping is all-or-nothing: the first failing level cancels the rest
// and no mapping is returned.
func (p *Pipeline) GenerateMultipleQualities(ctx context.Context, src, outDir string, ladder []QualityLevel) (map[string]string, error) {
	if len(ladder) == 0 {
		ladder = p.opts.Ladder
	}
	start := time.Now()
	outputs, err := p.transcoder.Ladder(ctx, src, outDir, ladder, domain.ConversionSpec{})
	p.metrics.Observe("ladder", start, err)
	return outputs, err
}

// GenerateHLSPlaylist packages src into an HLS bundle under outDir, one
// variant per ladder level, and returns it once master.m3u8 is written.
// Non-positive segmentDuration and a nil ladder fall back to Options.
//
// Variants are encoded one at a time in ladder order. If any variant fails
// no master playlist is written.
func (p *Pipeline) GenerateHLSPlaylist(ctx context.Context, src, outDir string, segmentDuration int, ladder []QualityLevel) (*HLSBundle, error) {
	return p.packageHLS(ctx, src, outDir, segmentDuration, ladder, false)
}

func (p *Pipeline) packageHLS(ctx context.Context, src, outDir string, segmentDuration int, ladder []QualityLevel, noAudio bool) (*HLSBundle, error) {
	if segmentDuration <= 0 {
		segmentDuration = p.opts.SegmentDuration
	}
	if len(ladder) == 0 {
		ladder = p.opts.Ladder
	}
	start := time.Now()
	bundle, err := p.packager.Package(ctx, hls.Request{
		Source:          src,
		OutputDir:       outDir,
		SegmentDuration: segmentDuration,
		Ladder:          ladder,
		NoAudio:         noAudio,
	})
	p.metrics.Observe("hls", start, err)
	return bundle, err
}

// ExtractAudio writes the audio of src alone to output as 192 kbps MP3.
func (p *Pipeline) ExtractAudio(ctx context.Context, src, output string) (string, error) {
	start := time.Now()
	path, err := p.transcoder.ExtractAudio(ctx, src, output, "")
	p.metrics.Observe("audio", start, err)
	return path, err
}

// CompressForWeb re-encodes src for progressive web playback: x264 preset
// slow at CRF 23, AAC 128 kbps, with the index moved to the front of the file.
func (p *Pipeline) CompressForWeb(ctx context.Context, src, output string) (string, error) {
	start := time.Now()
	path, err := p.transcoder.CompressForWeb(ctx, src, output)
	p.metrics.Observe("compress", start, err)
	return path, err
}

// EstimateProcessingTime estimates the wall-clock seconds kind takes on a
// source of duration seconds. It is a scheduling hint only.
func (p *Pipeline) EstimateProcessingTime(duration float64, kind OperationKind) (int, error) {
	return estimate.Seconds(duration, kind)
}

// Ingest runs one asset through the pipeline. Outputs land under OutputDir in
// thumbnails/, renditions/ and hls/.
//
// A source rejected by validation is not an error: the returned result has
// Validation.IsValid false and nothing else is produced. Its digest is
// reported but not recorded in the dedup index. Hashing failures are logged
// and leave Digest empty.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.SourcePath == "" {
		return nil, fmt.Errorf("ingest: source path is required")
	}
	if req.OutputDir == "" {
		return nil, fmt.Errorf("ingest: output dir is required")
	}
	if req.AssetID == "" {
		req.AssetID = uuid.NewString()
	}

	p.metrics.ActiveJobs.Inc()
	defer p.metrics.ActiveJobs.Dec()

	log := p.logger.With("asset_id", req.AssetID)
	result := &IngestResult{AssetID: req.AssetID}

	// The digest is only claimed in the dedup index once the source passed
	// validation.
	accepted := make(chan bool, 1)
	dedup := make(chan DedupResult, 1)
	go func() {
		digest, err := p.HashFile(ctx, req.SourcePath)
		if err != nil {
			log.Warn("content hash failed", "error", err)
			dedup <- DedupResult{}
			return
		}
		res := DedupResult{Digest: digest}
		if <-accepted {
			if res, err = p.claimDigest(ctx, digest, req.AssetID); err != nil {
				log.Warn("dedup index failed", "error", err)
			}
		}
		dedup <- res
	}()
	collectDigest := func() {
		res := <-dedup
		result.Digest = res.Digest
		result.DuplicateOf = res.DuplicateOf
	}

	validation := p.ValidateVideoFile(ctx, req.SourcePath)
	result.Validation = validation
	result.Metadata = validation.Metadata
	accepted <- validation.IsValid

	if !validation.IsValid {
		collectDigest()
		if errors.Is(validation.Err, ErrCancelled) {
			return result, validation.Err
		}
		log.Info("source rejected", "reason", validation.Error())
		return result, nil
	}

	meta := validation.Metadata
	result.EstimatedSeconds = estimate.Ingest(meta.Duration, req)

	ladder := p.opts.Ladder
	if p.opts.FitLadderToSource {
		ladder = rendition.FitToSource(ladder, meta.Width, meta.Height)
	}

	g, gctx := errgroup.WithContext(ctx)
	if req.ThumbnailCount > 0 {
		g.Go(func() error {
			paths, err := p.GenerateMultipleThumbnails(gctx, req.SourcePath, filepath.Join(req.OutputDir, "thumbnails"), req.ThumbnailCount)
			result.Thumbnails = paths
			return err
		})
	}
	if !req.SkipLadder {
		g.Go(func() error {
			outputs, err := p.GenerateMultipleQualities(gctx, req.SourcePath, filepath.Join(req.OutputDir, "renditions"), ladder)
			result.Renditions = outputs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		collectDigest()
		log.Error("ingest failed", "error", err)
		return result, err
	}

	if !req.SkipHLS {
		bundle, err := p.packageHLS(ctx, req.SourcePath, filepath.Join(req.OutputDir, "hls"), 0, ladder, !meta.HasAudio())
		if err != nil {
			collectDigest()
			log.Error("ingest failed", "error", err)
			return result, err
		}
		result.HLS = bundle
	}

	collectDigest()
	log.Info("ingest finished", "renditions", len(result.Renditions), "thumbnails", len(result.Thumbnails))
	return result, nil
}
