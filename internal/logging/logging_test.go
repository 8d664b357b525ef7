package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("govod", Config{Level: "debug", Format: "json", Output: &buf})

	log.Debug("probed source", "path", "in.mp4")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "probed source", entry["@message"])
	assert.Equal(t, "in.mp4", entry["path"])
	assert.Equal(t, "govod", entry["@module"])
}

func TestNew_LevelFilteringAndDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New("govod", Config{Level: "bogus", Output: &buf})

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
