package rendition

import (
	"fmt"
	"strings"

	"github.com/eleven-am/govod/internal/domain"
)

var tierCRF = map[domain.Tier]int{
	domain.TierLow:    28,
	domain.TierMedium: 23,
	domain.TierHigh:   18,
	domain.TierUltra:  15,
}

// CRF maps a quality tier to its constant rate factor. Callers validate the
// tier with ParseTier; anything else gets the medium value.
func CRF(tier domain.Tier) int {
	if crf, ok := tierCRF[tier]; ok {
		return crf
	}
	return tierCRF[domain.TierMedium]
}

// ParseTier accepts low, medium, high or ultra in any case. Empty means medium.
func ParseTier(s string) (domain.Tier, error) {
	tier := domain.Tier(strings.ToLower(strings.TrimSpace(s)))
	if tier == "" {
		return domain.TierMedium, nil
	}
	if _, ok := tierCRF[tier]; !ok {
		return "", fmt.Errorf("unknown quality tier %q", s)
	}
	return tier, nil
}

func DefaultLadder() []domain.QualityLevel {
	return []domain.QualityLevel{
		{Name: "480p", Width: 854, Height: 480, BitrateKbps: 1000},
		{Name: "720p", Width: 1280, Height: 720, BitrateKbps: 2500},
		{Name: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000},
	}
}

// ValidateLadder checks that names are unique and non-empty, dimensions and
// bitrates are positive, and bitrate never drops as pixel count grows.
func ValidateLadder(ladder []domain.QualityLevel) error {
	if len(ladder) == 0 {
		return fmt.Errorf("ladder is empty")
	}

	seen := make(map[string]bool, len(ladder))
	for _, level := range ladder {
		if strings.TrimSpace(level.Name) == "" {
			return fmt.Errorf("ladder level %s has no name", level.Resolution())
		}
		if seen[level.Name] {
			return fmt.Errorf("duplicate ladder level %q", level.Name)
		}
		seen[level.Name] = true
		if level.Width <= 0 || level.Height <= 0 {
			return fmt.Errorf("ladder level %q: invalid resolution %s", level.Name, level.Resolution())
		}
		if level.BitrateKbps <= 0 {
			return fmt.Errorf("ladder level %q: bitrate must be positive", level.Name)
		}
	}

	for i, a := range ladder {
		for _, b := range ladder[i+1:] {
			lo, hi := a, b
			if lo.Pixels() > hi.Pixels() {
				lo, hi = hi, lo
			}
			if lo.Pixels() < hi.Pixels() && lo.BitrateKbps > hi.BitrateKbps {
				return fmt.Errorf("ladder bitrate decreases from %q (%dk) to %q (%dk)",
					lo.Name, lo.BitrateKbps, hi.Name, hi.BitrateKbps)
			}
		}
	}
	return nil
}

// FitToSource drops levels taller than the source and aspect-corrects the
// width of the rest. The lowest level is always kept.
func FitToSource(ladder []domain.QualityLevel, srcWidth, srcHeight int) []domain.QualityLevel {
	if srcWidth <= 0 || srcHeight <= 0 || len(ladder) == 0 {
		return ladder
	}

	fitted := make([]domain.QualityLevel, 0, len(ladder))
	for _, level := range ladder {
		if level.Height > srcHeight {
			continue
		}
		level.Width = calculateWidth(srcWidth, srcHeight, level.Height)
		fitted = append(fitted, level)
	}

	if len(fitted) == 0 {
		lowest := ladder[0]
		for _, level := range ladder[1:] {
			if level.Pixels() < lowest.Pixels() {
				lowest = level
			}
		}
		fitted = append(fitted, lowest)
	}
	return fitted
}

func calculateWidth(srcWidth, srcHeight, targetHeight int) int {
	aspectRatio := float64(srcWidth) / float64(srcHeight)
	width := int(float64(targetHeight) * aspectRatio)
	if width%2 != 0 {
		width++
	}
	return width
}
