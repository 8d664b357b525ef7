package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/govod/internal/domain"
)

type Prober struct {
	runner   domain.Runner
	defaults domain.Tools
	logger   hclog.Logger
}

func NewProber(runner domain.Runner, tools domain.Tools, logger hclog.Logger) *Prober {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Prober{runner: runner, defaults: tools, logger: logger}
}

func (p *Prober) Probe(ctx context.Context, path string) (*domain.VideoMetadata, error) {
	tools := domain.ResolveTools(ctx, p.defaults)

	res, err := p.runner.Run(ctx, tools.FFprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	meta, err := ParseJSON(path, res.Stdout)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("probed source", "path", path, "resolution", meta.Resolution,
		"duration", meta.Duration, "video_codec", meta.VideoCodec, "audio_codec", meta.AudioCodec)
	return meta, nil
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	RFrameRate   string         `json:"r_frame_rate"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	Duration     string         `json:"duration"`
	Disposition  map[string]int `json:"disposition"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ParseJSON converts ffprobe JSON output into VideoMetadata. path is used
// only for error context.
func ParseJSON(path string, data []byte) (*domain.VideoMetadata, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, &domain.ProbeParseError{Path: path, Detail: "invalid json", Err: err}
	}

	video, audio := selectStreams(ff.Streams)
	if video == nil {
		return nil, &domain.NoVideoStreamError{Path: path}
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, &domain.ProbeParseError{Path: path, Detail: fmt.Sprintf("video stream has invalid dimensions %dx%d", video.Width, video.Height)}
	}

	duration, err := parseDuration(ff.Format.Duration, video.Duration)
	if err != nil {
		return nil, &domain.ProbeParseError{Path: path, Detail: "duration", Err: err}
	}

	bitrate, err := parseOptionalInt(ff.Format.BitRate)
	if err != nil {
		return nil, &domain.ProbeParseError{Path: path, Detail: "bit_rate", Err: err}
	}

	size, err := parseOptionalInt(ff.Format.Size)
	if err != nil {
		return nil, &domain.ProbeParseError{Path: path, Detail: "size", Err: err}
	}

	fps, err := parseFrameRate(video.RFrameRate, video.AvgFrameRate)
	if err != nil {
		return nil, &domain.ProbeParseError{Path: path, Detail: "frame rate", Err: err}
	}

	audioCodec := domain.AudioCodecNone
	if audio != nil && audio.CodecName != "" {
		audioCodec = audio.CodecName
	}

	return &domain.VideoMetadata{
		Duration:    duration,
		Width:       video.Width,
		Height:      video.Height,
		Resolution:  fmt.Sprintf("%dx%d", video.Width, video.Height),
		Format:      firstToken(ff.Format.FormatName),
		VideoCodec:  video.CodecName,
		AudioCodec:  audioCodec,
		BitrateKbps: int(math.Round(float64(bitrate) / 1000)),
		FrameRate:   fps,
		FileSize:    size,
		AspectRatio: ReduceAspectRatio(video.Width, video.Height),
	}, nil
}

func selectStreams(streams []ffprobeStream) (video, audio *ffprobeStream) {
	for i := range streams {
		s := &streams[i]
		switch s.CodecType {
		case "video":
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	return video, audio
}

func parseDuration(format, stream string) (float64, error) {
	for _, raw := range []string{format, stream} {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "N/A" {
			continue
		}
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, err
		}
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, fmt.Errorf("out of range: %s", raw)
		}
		return d, nil
	}
	return 0, fmt.Errorf("missing")
}

func parseOptionalInt(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseFrameRate(primary, fallback string) (int, error) {
	r, err := ParseRational(primary)
	if err != nil {
		var fbErr error
		if r, fbErr = ParseRational(fallback); fbErr != nil {
			return 0, err
		}
	}
	return int(math.Round(r.Float())), nil
}

func firstToken(name string) string {
	if i := strings.IndexByte(name, ','); i >= 0 {
		return name[:i]
	}
	return name
}
