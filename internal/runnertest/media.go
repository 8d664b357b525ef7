package runnertest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/segment"
)

// Source describes the media a Media handler pretends to process.
type Source struct {
	Duration   float64
	Width      int
	Height     int
	Size       int64
	AudioCodec string
}

// Media answers ffprobe with Source and makes every ffmpeg call write the
// files it names, so callers can inspect real outputs on disk.
func Media(src Source) Handler {
	return func(ctx context.Context, call Call) (domain.Result, error) {
		if strings.Contains(filepath.Base(call.Name), "ffprobe") {
			return JSON(ProbeJSON(src.Duration, src.Width, src.Height, src.Size, src.AudioCodec))
		}
		if err := Simulate(call, src.Duration); err != nil {
			return domain.Result{ExitCode: 1, Stderr: err.Error()}, &domain.ProcessError{
				Command: call.Name, ExitCode: 1, Stderr: err.Error(),
			}
		}
		return domain.Result{}, nil
	}
}

// Simulate writes the artifacts an ffmpeg invocation would produce.
func Simulate(call Call, duration float64) error {
	switch {
	case call.Arg("-f") == "hls":
		return writeHLS(call, duration)
	case strings.Contains(call.Arg("-vf"), "tile="):
		return writeSprites(call, duration)
	default:
		return writeFile(call.Last())
	}
}

func writeFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("media"), 0o644)
}

func writeHLS(call Call, duration float64) error {
	pattern := call.Arg("-hls_segment_filename")
	dir := filepath.Dir(pattern)
	quality := strings.TrimSuffix(filepath.Base(pattern), "_segment_%03d.ts")

	target, err := strconv.ParseFloat(call.Arg("-hls_time"), 64)
	if err != nil {
		return fmt.Errorf("hls_time: %w", err)
	}

	segments := Plan(quality, duration, target)
	for _, s := range segments {
		if err := writeFile(filepath.Join(dir, s.URI)); err != nil {
			return err
		}
	}
	return os.WriteFile(call.Last(), []byte(VariantPlaylist(segments)), 0o644)
}

func writeSprites(call Call, duration float64) error {
	var interval float64
	var cols, rows int
	for _, part := range strings.Split(call.Arg("-vf"), ",") {
		switch {
		case strings.HasPrefix(part, "fps=1/"):
			interval, _ = strconv.ParseFloat(strings.TrimPrefix(part, "fps=1/"), 64)
		case strings.HasPrefix(part, "tile="):
			fmt.Sscanf(strings.TrimPrefix(part, "tile="), "%dx%d", &cols, &rows)
		}
	}
	if interval <= 0 || cols <= 0 || rows <= 0 {
		return fmt.Errorf("bad storyboard filter %q", call.Arg("-vf"))
	}

	thumbs := int(math.Ceil(duration / interval))
	sprites := int(math.Ceil(float64(thumbs) / float64(cols*rows)))
	for i := 1; i <= sprites; i++ {
		if err := writeFile(fmt.Sprintf(call.Last(), i)); err != nil {
			return err
		}
	}
	return nil
}

// Plan splits duration into fixed-length segments the way the segmenter does.
func Plan(quality string, duration, target float64) []domain.Segment {
	if duration <= 0 || target <= 0 {
		return nil
	}

	count := int(math.Ceil(duration / target))
	segments := make([]domain.Segment, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * target
		end := math.Min(start+target, duration)
		segments = append(segments, domain.Segment{
			Index:    i,
			URI:      segment.Name(quality, i),
			Start:    start,
			End:      end,
			Duration: end - start,
		})
	}
	return segments
}

// VariantPlaylist renders segments as a VOD media playlist.
func VariantPlaylist(segments []domain.Segment) string {
	var maxDuration float64
	for _, seg := range segments {
		maxDuration = math.Max(maxDuration, seg.Duration)
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(maxDuration)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "#EXTINF:%.6f,\n%s\n", seg.Duration, seg.URI)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}
