package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/govod/internal/domain"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe("probe", time.Now(), nil)
	m.Observe("ladder", time.Now(), domain.NewFailure(domain.KindEncode, "720p", errors.New("boom")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("ladder", "encode")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))

	expected := `
# HELP govod_stage_failures_total Failed pipeline stages by failure kind.
# TYPE govod_stage_failures_total counter
govod_stage_failures_total{kind="encode",stage="ladder"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "govod_stage_failures_total"))
}

func TestObserve_NilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe("probe", time.Now(), errors.New("x")) })
}

func TestNew_NilRegistererDoesNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, "cancelled", Kind(&domain.CancelledError{Command: "ffmpeg", Cause: errors.New("ctx")}))
	assert.Equal(t, "playlist", Kind(domain.NewFailure(domain.KindPlaylist, "", errors.New("x"))))
	assert.Equal(t, "process", Kind(&domain.ProcessError{Command: "ffprobe", ExitCode: 1}))
	assert.Equal(t, "spawn", Kind(&domain.ProcessSpawnError{Command: "ffprobe", Err: errors.New("nope")}))
	assert.Equal(t, "other", Kind(errors.New("x")))
}
