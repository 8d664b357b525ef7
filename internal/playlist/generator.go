package playlist

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/eleven-am/govod/internal/domain"
)

const MasterName = "master.m3u8"

// MasterBuilder accumulates variants as they complete.
type MasterBuilder struct {
	b strings.Builder
}

func NewMasterBuilder() *MasterBuilder {
	m := &MasterBuilder{}
	m.b.WriteString("#EXTM3U\n")
	m.b.WriteString("#EXT-X-VERSION:3\n")
	return m
}

func (m *MasterBuilder) Add(level domain.QualityLevel, uri string) {
	m.b.WriteString(StreamInf(level))
	m.b.WriteString(uri + "\n")
}

func (m *MasterBuilder) String() string {
	return m.b.String()
}

func StreamInf(level domain.QualityLevel) string {
	return fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", level.BitrateKbps*1000, level.Resolution())
}

// ParseVariant reads the media segments out of a variant playlist. Start and
// End are accumulated from the EXTINF durations.
func ParseVariant(text string) ([]domain.Segment, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))

	var (
		segments []domain.Segment
		pending  = -1.0
		elapsed  float64
		header   bool
		ended    bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case !header:
			if line != "#EXTM3U" {
				return nil, fmt.Errorf("missing #EXTM3U header")
			}
			header = true
		case strings.HasPrefix(line, "#EXTINF:"):
			value, _, _ := strings.Cut(strings.TrimPrefix(line, "#EXTINF:"), ",")
			d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || d < 0 {
				return nil, fmt.Errorf("invalid EXTINF %q", line)
			}
			pending = d
		case line == "#EXT-X-ENDLIST":
			ended = true
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending < 0 {
				return nil, fmt.Errorf("segment %q has no EXTINF", line)
			}
			segments = append(segments, domain.Segment{
				Index:    len(segments),
				URI:      line,
				Start:    elapsed,
				End:      elapsed + pending,
				Duration: pending,
			})
			elapsed += pending
			pending = -1
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, fmt.Errorf("missing #EXTM3U header")
	}
	if pending >= 0 {
		return nil, fmt.Errorf("trailing EXTINF without segment")
	}
	if !ended {
		return nil, fmt.Errorf("playlist has no #EXT-X-ENDLIST")
	}
	return segments, nil
}
