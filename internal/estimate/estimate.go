package estimate

import (
	"fmt"
	"math"

	"github.com/eleven-am/govod/internal/domain"
)

var multipliers = map[domain.OperationKind]float64{
	domain.OpThumbnail: 0.1,
	domain.OpConvert:   1.5,
	domain.OpHLS:       3.0,
	domain.OpCompress:  2.0,
	domain.OpAudio:     0.3,
}

// Seconds estimates wall-clock seconds for kind over a source of duration
// seconds. Only meant for scheduling hints.
func Seconds(duration float64, kind domain.OperationKind) (int, error) {
	m, ok := multipliers[kind]
	if !ok {
		return 0, fmt.Errorf("unknown operation kind %q", kind)
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, nil
	}
	return int(math.Ceil(duration * m)), nil
}

// Ingest sums the estimates for the stages an ingest request will run.
func Ingest(duration float64, req domain.IngestRequest) int {
	var total int
	if req.ThumbnailCount > 0 {
		thumbs, _ := Seconds(duration, domain.OpThumbnail)
		total += thumbs
	}
	if !req.SkipLadder {
		convert, _ := Seconds(duration, domain.OpConvert)
		total += convert
	}
	if !req.SkipHLS {
		hls, _ := Seconds(duration, domain.OpHLS)
		total += hls
	}
	return total
}
