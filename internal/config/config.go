package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/hash"
	"github.com/eleven-am/govod/internal/hls"
	"github.com/eleven-am/govod/internal/logging"
	"github.com/eleven-am/govod/internal/rendition"
	"github.com/eleven-am/govod/internal/runner"
	"github.com/eleven-am/govod/internal/thumbnail"
	"github.com/eleven-am/govod/internal/validate"
)

// encodeMemory is the working set budgeted per concurrent encode.
const encodeMemory = 2 << 30

type Config struct {
	Tools      ToolsConfig                `yaml:"tools"`
	Runner     RunnerConfig               `yaml:"runner"`
	Policy     validate.Policy            `yaml:"policy"`
	Ladder     []domain.QualityLevel      `yaml:"ladder"`
	HLS        HLSConfig                  `yaml:"hls"`
	Thumbnails ThumbnailConfig            `yaml:"thumbnails"`
	Storyboard thumbnail.StoryboardConfig `yaml:"storyboard"`
	Pool       PoolConfig                 `yaml:"pool"`
	Dedup      DedupConfig                `yaml:"dedup"`
	Logging    logging.Config             `yaml:"logging"`
}

type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

type RunnerConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	GracePeriod time.Duration `yaml:"grace_period"`
	StderrLimit int           `yaml:"stderr_limit"`
}

type HLSConfig struct {
	SegmentDuration int `yaml:"segment_duration"`
}

type ThumbnailConfig struct {
	Count   int `yaml:"count"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Quality int `yaml:"quality"`
}

type PoolConfig struct {
	Concurrency          int  `yaml:"concurrency"`
	Queue                int  `yaml:"queue"`
	RenditionParallelism int  `yaml:"rendition_parallelism"`
	FitLadderToSource    bool `yaml:"fit_ladder_to_source"`
}

type DedupConfig struct {
	Redis hash.RedisConfig `yaml:"redis"`
}

func Default() *Config {
	thumb := domain.DefaultThumbnailRequest()
	return &Config{
		Tools: ToolsConfig{FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		Runner: RunnerConfig{
			GracePeriod: runner.DefaultGracePeriod,
			StderrLimit: runner.DefaultStderrLimit,
		},
		Policy:     validate.DefaultPolicy(),
		Ladder:     rendition.DefaultLadder(),
		HLS:        HLSConfig{SegmentDuration: hls.DefaultSegmentDuration},
		Thumbnails: ThumbnailConfig{Count: 5, Width: thumb.Width, Height: thumb.Height, Quality: thumb.Quality},
		Storyboard: thumbnail.DefaultStoryboardConfig(),
		Pool: PoolConfig{
			Concurrency:          DefaultConcurrency(),
			Queue:                16,
			RenditionParallelism: 1,
		},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Tools.FFmpeg, "FFMPEG_PATH")
	setString(&c.Tools.FFprobe, "FFPROBE_PATH")
	setString(&c.Dedup.Redis.Addr, "GOVOD_REDIS_ADDR")
	setString(&c.Dedup.Redis.Password, "GOVOD_REDIS_PASSWORD")
	setString(&c.Logging.Level, "GOVOD_LOG_LEVEL")
	setString(&c.Logging.Format, "GOVOD_LOG_FORMAT")

	ints := map[string]*int{
		"GOVOD_CONCURRENCY":           &c.Pool.Concurrency,
		"GOVOD_QUEUE":                 &c.Pool.Queue,
		"GOVOD_RENDITION_PARALLELISM": &c.Pool.RenditionParallelism,
		"GOVOD_SEGMENT_DURATION":      &c.HLS.SegmentDuration,
		"GOVOD_THUMBNAIL_COUNT":       &c.Thumbnails.Count,
	}
	for key, dst := range ints {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}

	if v, ok := lookup("GOVOD_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GOVOD_TIMEOUT: %w", err)
		}
		c.Runner.Timeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Tools.FFmpeg == "" || c.Tools.FFprobe == "" {
		return fmt.Errorf("tool paths must not be empty")
	}
	if err := rendition.ValidateLadder(c.Ladder); err != nil {
		return fmt.Errorf("ladder: %w", err)
	}
	if c.HLS.SegmentDuration <= 0 {
		return fmt.Errorf("hls.segment_duration must be positive")
	}
	if c.Pool.Concurrency < 1 {
		return fmt.Errorf("pool.concurrency must be at least 1")
	}
	if c.Pool.Queue < 0 {
		return fmt.Errorf("pool.queue must not be negative")
	}
	if c.Policy.MinDuration > c.Policy.MaxDuration {
		return fmt.Errorf("policy.min_duration exceeds policy.max_duration")
	}
	return nil
}

func (c *Config) ToolPaths() domain.Tools {
	return domain.Tools{FFmpeg: c.Tools.FFmpeg, FFprobe: c.Tools.FFprobe}
}

func (c *Config) ThumbnailRequest() domain.ThumbnailRequest {
	return domain.ThumbnailRequest{
		Offset:  domain.OffsetAuto,
		Width:   c.Thumbnails.Width,
		Height:  c.Thumbnails.Height,
		Quality: c.Thumbnails.Quality,
	}
}

// DefaultConcurrency allows one asset per two physical cores, further capped
// by available memory. Never less than one.
func DefaultConcurrency() int {
	cores, err := cpu.Counts(false)
	if err != nil || cores < 1 {
		cores = runtime.NumCPU()
	}

	n := cores / 2
	if vm, err := mem.VirtualMemory(); err == nil {
		if byMem := int(vm.Available / encodeMemory); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
