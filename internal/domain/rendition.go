package domain

import "fmt"

type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
	TierUltra  Tier = "ultra"
)

type ConversionSpec struct {
	Format      string
	Quality     Tier
	Resolution  string
	BitrateKbps int
	FrameRate   int
	VideoCodec  string
	AudioCodec  string
	NoAudio     bool
}

type Rendition struct {
	Label       string `json:"label"`
	Resolution  string `json:"resolution,omitempty"`
	BitrateKbps int    `json:"bitrate,omitempty"`
	Path        string `json:"path"`
}

// QualityLevel is one rung of a quality ladder.
type QualityLevel struct {
	Name        string `yaml:"name" json:"name"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`
	BitrateKbps int    `yaml:"bitrate" json:"bitrate"`
}

func (q QualityLevel) Resolution() string {
	return fmt.Sprintf("%dx%d", q.Width, q.Height)
}

func (q QualityLevel) Pixels() int {
	return q.Width * q.Height
}
