package rendition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
)

func TestCRF(t *testing.T) {
	assert.Equal(t, 28, CRF(domain.TierLow))
	assert.Equal(t, 23, CRF(domain.TierMedium))
	assert.Equal(t, 18, CRF(domain.TierHigh))
	assert.Equal(t, 15, CRF(domain.TierUltra))
	assert.Equal(t, 23, CRF(""))
	assert.Equal(t, 23, CRF("bogus"))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, domain.TierHigh, tier)

	tier, err = ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, domain.TierMedium, tier)

	_, err = ParseTier("lossless")
	assert.Error(t, err)
}

func TestDefaultLadder_BitrateMonotonicInResolution(t *testing.T) {
	ladder := DefaultLadder()
	require.NoError(t, ValidateLadder(ladder))

	for i, a := range ladder {
		for _, b := range ladder[i+1:] {
			if a.Pixels() < b.Pixels() {
				assert.LessOrEqual(t, a.BitrateKbps, b.BitrateKbps, "%s vs %s", a.Name, b.Name)
			}
			if b.Pixels() < a.Pixels() {
				assert.LessOrEqual(t, b.BitrateKbps, a.BitrateKbps, "%s vs %s", b.Name, a.Name)
			}
		}
	}

	names := []string{ladder[0].Name, ladder[1].Name, ladder[2].Name}
	assert.Equal(t, []string{"480p", "720p", "1080p"}, names)
	assert.Equal(t, "1280x720", ladder[1].Resolution())
}

func TestValidateLadder_Rejects(t *testing.T) {
	cases := map[string][]domain.QualityLevel{
		"empty": nil,
		"unnamed": {
			{Name: "", Width: 640, Height: 360, BitrateKbps: 800},
		},
		"duplicate": {
			{Name: "a", Width: 640, Height: 360, BitrateKbps: 800},
			{Name: "a", Width: 1280, Height: 720, BitrateKbps: 2500},
		},
		"zero size": {
			{Name: "a", Width: 0, Height: 360, BitrateKbps: 800},
		},
		"zero bitrate": {
			{Name: "a", Width: 640, Height: 360, BitrateKbps: 0},
		},
		"decreasing": {
			{Name: "hd", Width: 1280, Height: 720, BitrateKbps: 900},
			{Name: "sd", Width: 640, Height: 360, BitrateKbps: 1000},
		},
	}
	for name, ladder := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateLadder(ladder))
		})
	}
}

func TestValidateLadder_AllowsUnorderedButMonotonic(t *testing.T) {
	ladder := []domain.QualityLevel{
		{Name: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000},
		{Name: "360p", Width: 640, Height: 360, BitrateKbps: 600},
		{Name: "360p-alt", Width: 640, Height: 360, BitrateKbps: 800},
	}
	assert.NoError(t, ValidateLadder(ladder))
}

func TestFitToSource_DropsUpscalesAndEvensWidth(t *testing.T) {
	fitted := FitToSource(DefaultLadder(), 1919, 800)

	require.Len(t, fitted, 2)
	assert.Equal(t, "480p", fitted[0].Name)
	assert.Equal(t, 1152, fitted[0].Width)
	assert.Equal(t, "720p", fitted[1].Name)
	assert.Equal(t, 1728, fitted[1].Width)
	for _, level := range fitted {
		assert.Equal(t, 0, level.Width%2, level.Name)
	}
}

func TestFitToSource_ShortSourceKeepsOnlyFittingLevels(t *testing.T) {
	fitted := FitToSource(DefaultLadder(), 1280, 640)

	require.Len(t, fitted, 1)
	assert.Equal(t, "480p", fitted[0].Name)
	assert.Equal(t, 960, fitted[0].Width)
}

func TestFitToSource_KeepsLowestForTinySource(t *testing.T) {
	fitted := FitToSource(DefaultLadder(), 320, 240)
	require.Len(t, fitted, 1)
	assert.Equal(t, "480p", fitted[0].Name)
	assert.Equal(t, 854, fitted[0].Width)
}

func TestFitToSource_FullHDKeepsEverything(t *testing.T) {
	fitted := FitToSource(DefaultLadder(), 1920, 1080)
	assert.Equal(t, DefaultLadder(), fitted)
}
