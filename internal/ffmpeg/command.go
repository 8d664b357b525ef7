package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/segment"
)

const (
	DefaultVideoCodec   = "libx264"
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = 128
	DefaultFormat       = "mp4"

	WebPreset = "slow"
	WebCRF    = 23

	DefaultAudioExtractCodec   = "libmp3lame"
	DefaultAudioExtractBitrate = 192
)

type CommandBuilder struct {
	// HLSPreset is the x264 preset used for segmenting encodes.
	HLSPreset string
}

func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{HLSPreset: "veryfast"}
}

func baseArgs() []string {
	return []string{"-nostats", "-hide_banner", "-loglevel", "warning", "-y"}
}

type ThumbnailParams struct {
	Input   string
	Output  string
	Offset  float64
	Width   int
	Height  int
	Quality int
}

func (b *CommandBuilder) Thumbnail(p ThumbnailParams) []string {
	args := baseArgs()
	args = append(args,
		"-ss", formatSeconds(p.Offset),
		"-i", p.Input,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-q:v", strconv.Itoa(p.Quality),
		p.Output,
	)
	return args
}

type StoryboardParams struct {
	Input         string
	OutputPattern string
	Interval      float64
	TileWidth     int
	TileHeight    int
	Columns       int
	Rows          int
}

func (b *CommandBuilder) Storyboard(p StoryboardParams) []string {
	args := baseArgs()
	args = append(args,
		"-i", p.Input,
		"-vf", fmt.Sprintf("fps=1/%g,scale=%d:%d,tile=%dx%d", p.Interval, p.TileWidth, p.TileHeight, p.Columns, p.Rows),
		"-q:v", "5",
		p.OutputPattern,
	)
	return args
}

type ConvertParams struct {
	Input  string
	Output string
	Spec   domain.ConversionSpec
	CRF    int
}

func (b *CommandBuilder) Convert(p ConvertParams) ([]string, error) {
	spec := p.Spec

	videoCodec := spec.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}

	args := baseArgs()
	args = append(args,
		"-i", p.Input,
		"-c:v", videoCodec,
		"-crf", strconv.Itoa(p.CRF),
	)

	if spec.Resolution != "" {
		scale, err := ScaleFilter(spec.Resolution)
		if err != nil {
			return nil, err
		}
		args = append(args, "-vf", scale)
	}
	if spec.BitrateKbps > 0 {
		args = append(args, "-b:v", kbps(spec.BitrateKbps))
	}
	if spec.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(spec.FrameRate))
	}

	if spec.NoAudio {
		args = append(args, "-an")
	} else {
		audioCodec := spec.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-c:a", audioCodec)
	}

	format := spec.Format
	if format == "" {
		format = DefaultFormat
	}
	args = append(args, "-f", format, p.Output)

	return args, nil
}

type HLSVariantParams struct {
	Input           string
	OutputDir       string
	Level           domain.QualityLevel
	SegmentDuration int
	NoAudio         bool
}

// HLSVariant encodes and segments one ladder level in a single pass. Keyframes
// are forced on segment boundaries so every segment starts decodable.
func (b *CommandBuilder) HLSVariant(p HLSVariantParams) []string {
	level := p.Level
	args := baseArgs()
	args = append(args,
		"-i", p.Input,
		"-c:v", DefaultVideoCodec,
		"-preset", b.HLSPreset,
		"-vf", fmt.Sprintf("scale=%d:%d", level.Width, level.Height),
		"-b:v", kbps(level.BitrateKbps),
		"-maxrate", kbps(int(float64(level.BitrateKbps)*1.5)),
		"-bufsize", kbps(level.BitrateKbps*2),
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", p.SegmentDuration),
		"-sc_threshold", "0",
	)

	if p.NoAudio {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", DefaultAudioCodec, "-b:a", kbps(DefaultAudioBitrate))
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.SegmentDuration),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(p.OutputDir, segment.Pattern(level.Name)),
		filepath.Join(p.OutputDir, VariantPlaylistName(level.Name)),
	)
	return args
}

func VariantPlaylistName(quality string) string {
	return quality + ".m3u8"
}

type AudioParams struct {
	Input       string
	Output      string
	Codec       string
	BitrateKbps int
}

func (b *CommandBuilder) ExtractAudio(p AudioParams) []string {
	codec := p.Codec
	if codec == "" {
		codec = DefaultAudioExtractCodec
	}
	bitrate := p.BitrateKbps
	if bitrate <= 0 {
		bitrate = DefaultAudioExtractBitrate
	}

	args := baseArgs()
	args = append(args,
		"-i", p.Input,
		"-vn",
		"-c:a", codec,
		"-b:a", kbps(bitrate),
		p.Output,
	)
	return args
}

func (b *CommandBuilder) WebCompress(input, output string) []string {
	args := baseArgs()
	args = append(args,
		"-i", input,
		"-c:v", DefaultVideoCodec,
		"-preset", WebPreset,
		"-crf", strconv.Itoa(WebCRF),
		"-c:a", DefaultAudioCodec,
		"-b:a", kbps(DefaultAudioBitrate),
		"-movflags", "+faststart",
		output,
	)
	return args
}

// ScaleFilter turns "WxH" into an ffmpeg scale filter.
func ScaleFilter(resolution string) (string, error) {
	w, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return "", fmt.Errorf("invalid resolution %q", resolution)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return "", fmt.Errorf("invalid resolution %q", resolution)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return "", fmt.Errorf("invalid resolution %q", resolution)
	}
	return fmt.Sprintf("scale=%d:%d", width, height), nil
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
