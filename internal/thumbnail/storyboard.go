package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/eleven-am/govod/internal/domain"
	"github.com/eleven-am/govod/internal/ffmpeg"
)

const (
	StoryboardVTT = "storyboard.vtt"
	spritePattern = "sprite-%d.jpg"
)

type StoryboardConfig struct {
	TileWidth  int     `yaml:"tile_width"`
	TileHeight int     `yaml:"tile_height"`
	Interval   float64 `yaml:"interval"`
	Columns    int     `yaml:"columns"`
	Rows       int     `yaml:"rows"`
}

func DefaultStoryboardConfig() StoryboardConfig {
	return StoryboardConfig{
		TileWidth:  160,
		TileHeight: 90,
		Interval:   5,
		Columns:    10,
		Rows:       10,
	}
}

type Storyboard struct {
	VTTPath string   `json:"vttPath"`
	Sprites []string `json:"sprites"`
}

func (g *Generator) SetStoryboardConfig(cfg StoryboardConfig) {
	def := DefaultStoryboardConfig()
	if cfg.TileWidth <= 0 {
		cfg.TileWidth = def.TileWidth
	}
	if cfg.TileHeight <= 0 {
		cfg.TileHeight = def.TileHeight
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Columns <= 0 {
		cfg.Columns = def.Columns
	}
	if cfg.Rows <= 0 {
		cfg.Rows = def.Rows
	}
	g.storyboard = cfg
}

// Storyboard renders seek-preview sprite sheets into outDir together with a
// WebVTT index addressing each tile.
func (g *Generator) Storyboard(ctx context.Context, src, outDir string) (*Storyboard, error) {
	meta, err := g.prober.Probe(ctx, src)
	if err != nil {
		return nil, domain.NewFailure(domain.KindThumbnail, "storyboard", err)
	}
	if meta.Duration <= 0 {
		return nil, domain.NewFailure(domain.KindThumbnail, "storyboard", fmt.Errorf("source has no duration"))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, domain.NewFailure(domain.KindThumbnail, "storyboard", err)
	}

	cfg := g.storyboard
	thumbsPerSprite := cfg.Columns * cfg.Rows
	totalThumbs := int(math.Ceil(meta.Duration / cfg.Interval))
	numSprites := int(math.Ceil(float64(totalThumbs) / float64(thumbsPerSprite)))

	tools := domain.ResolveTools(ctx, g.defaults)
	args := g.builder.Storyboard(ffmpeg.StoryboardParams{
		Input:         src,
		OutputPattern: filepath.Join(outDir, spritePattern),
		Interval:      cfg.Interval,
		TileWidth:     cfg.TileWidth,
		TileHeight:    cfg.TileHeight,
		Columns:       cfg.Columns,
		Rows:          cfg.Rows,
	})
	if _, err := g.runner.Run(ctx, tools.FFmpeg, args...); err != nil {
		return nil, domain.NewFailure(domain.KindThumbnail, "storyboard", err)
	}

	sprites := make([]string, 0, numSprites)
	for i := 1; i <= numSprites; i++ {
		path := filepath.Join(outDir, fmt.Sprintf(spritePattern, i))
		if _, err := os.Stat(path); err != nil {
			return nil, domain.NewFailure(domain.KindThumbnail, "storyboard", fmt.Errorf("sprite %d: %w", i, err))
		}
		sprites = append(sprites, path)
	}

	vttPath := filepath.Join(outDir, StoryboardVTT)
	if err := os.WriteFile(vttPath, storyboardVTT(cfg, meta.Duration, numSprites), 0o644); err != nil {
		return nil, domain.NewFailure(domain.KindThumbnail, "storyboard", fmt.Errorf("write vtt: %w", err))
	}

	return &Storyboard{VTTPath: vttPath, Sprites: sprites}, nil
}

func storyboardVTT(cfg StoryboardConfig, duration float64, numSprites int) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n\n")

	currentTime := 0.0

	for spriteIndex := 1; spriteIndex <= numSprites; spriteIndex++ {
		sprite := fmt.Sprintf(spritePattern, spriteIndex)

		for row := 0; row < cfg.Rows && currentTime < duration; row++ {
			for col := 0; col < cfg.Columns && currentTime < duration; col++ {
				endTime := math.Min(currentTime+cfg.Interval, duration)

				buf.WriteString(fmt.Sprintf("%s --> %s\n", formatVTTTime(currentTime), formatVTTTime(endTime)))
				buf.WriteString(fmt.Sprintf("%s#xywh=%d,%d,%d,%d\n\n", sprite,
					col*cfg.TileWidth, row*cfg.TileHeight, cfg.TileWidth, cfg.TileHeight))

				currentTime += cfg.Interval
			}
		}
	}

	return buf.Bytes()
}

func formatVTTTime(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int(math.Round((seconds - float64(int(seconds))) * 1000))
	if millis == 1000 {
		millis = 999
	}

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
