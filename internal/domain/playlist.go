package domain

type HLSBundle struct {
	Dir        string    `json:"dir"`
	MasterPath string    `json:"masterPath"`
	Master     string    `json:"-"`
	Variants   []Variant `json:"variants"`
}

type Variant struct {
	Level        QualityLevel `json:"level"`
	PlaylistPath string       `json:"playlistPath"`
	Segments     []string     `json:"segments"`
}

// Segment is one media chunk of a variant playlist.
type Segment struct {
	Index    int     `json:"index"`
	URI      string  `json:"uri"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}
