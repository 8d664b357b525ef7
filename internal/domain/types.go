package domain

const AudioCodecNone = "none"

// OffsetAuto asks the thumbnail generator to seek to the middle of the source.
const OffsetAuto = -1.0

type VideoMetadata struct {
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Resolution  string  `json:"resolution"`
	Format      string  `json:"format"`
	VideoCodec  string  `json:"videoCodec"`
	AudioCodec  string  `json:"audioCodec"`
	BitrateKbps int     `json:"bitrate"`
	FrameRate   int     `json:"fps"`
	FileSize    int64   `json:"fileSize"`
	AspectRatio string  `json:"aspectRatio"`
}

// HasAudio reports whether the probe found an audio stream.
func (m VideoMetadata) HasAudio() bool {
	return m.AudioCodec != "" && m.AudioCodec != AudioCodecNone
}

type ThumbnailRequest struct {
	Offset  float64
	Width   int
	Height  int
	Quality int
}

func DefaultThumbnailRequest() ThumbnailRequest {
	return ThumbnailRequest{
		Offset:  OffsetAuto,
		Width:   640,
		Height:  360,
		Quality: 2,
	}
}

type ValidationResult struct {
	IsValid    bool                  `json:"isValid"`
	Metadata   *VideoMetadata        `json:"metadata,omitempty"`
	Err        error                 `json:"-"`
	Violations []ConstraintViolation `json:"violations,omitempty"`
}

// Error returns the recorded failure text, or "" when validation passed.
func (r ValidationResult) Error() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if len(r.Violations) > 0 {
		return r.Violations[0].Error()
	}
	return ""
}

type OperationKind string

const (
	OpThumbnail OperationKind = "thumbnail"
	OpConvert   OperationKind = "convert"
	OpHLS       OperationKind = "hls"
	OpCompress  OperationKind = "compress"
	OpAudio     OperationKind = "audio"
)

type IngestRequest struct {
	AssetID        string
	SourcePath     string
	OutputDir      string
	ThumbnailCount int
	SkipLadder     bool
	SkipHLS        bool
}

type IngestResult struct {
	AssetID          string            `json:"assetId"`
	Metadata         *VideoMetadata    `json:"metadata,omitempty"`
	Validation       ValidationResult  `json:"validation"`
	Digest           string            `json:"digest,omitempty"`
	DuplicateOf      string            `json:"duplicateOf,omitempty"`
	Thumbnails       []string          `json:"thumbnails,omitempty"`
	Renditions       map[string]string `json:"renditions,omitempty"`
	HLS              *HLSBundle        `json:"hls,omitempty"`
	EstimatedSeconds int               `json:"estimatedSeconds,omitempty"`
}

type Job struct {
	ID      string
	Request IngestRequest
}

type JobResult struct {
	JobID  string
	Result *IngestResult
	Err    error
}
